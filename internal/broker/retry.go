package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultMaxRetries bounds transient-failure retries on broker calls.
const defaultMaxRetries = 4

// withRetry runs op with exponential backoff until it succeeds, the attempt
// budget is spent, or the context is canceled. Wrap terminal conditions
// (order rejections) in backoff.Permanent to stop retrying immediately.
func withRetry(ctx context.Context, maxRetries uint64, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0 // bounded by the retry count, not wall time
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}
