package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"VCPSentinel/internal/model"
)

// RESTBroker implements Broker against the vstrader REST API. Every request
// passes through a shared rate limiter; transient transport failures are
// retried with exponential backoff, terminal order rejections are not.
type RESTBroker struct {
	BaseURL string
	APIKey  string
	Account string
	Client  *http.Client

	limiter    *rate.Limiter
	maxRetries uint64
}

// NewRESTBroker creates a broker client with optional proxy support.
// ratePerSec bounds outbound request rate; <= 0 selects a conservative 5/s.
func NewRESTBroker(baseURL, apiKey, account, proxyURL string, ratePerSec float64) *RESTBroker {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &RESTBroker{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Account: account,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		maxRetries: defaultMaxRetries,
	}
}

func (b *RESTBroker) Name() string { return "vstrader" }

// restBar is the expected JSON shape from the bars endpoint.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (b *RESTBroker) GetPriceHistory(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d",
		b.BaseURL, url.QueryEscape(symbol), days)

	var raw []restBar
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.getJSON(ctx, endpoint, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}

	bars := make([]model.Bar, len(raw))
	for i, rb := range raw {
		bars[i] = model.Bar{
			Time:   time.Unix(rb.Timestamp, 0),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (b *RESTBroker) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	price, _, err := b.CurrentQuote(ctx, symbol)
	return price, err
}

// CurrentQuote returns the latest price and the session's cumulative volume.
func (b *RESTBroker) CurrentQuote(ctx context.Context, symbol string) (float64, float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", b.BaseURL, url.QueryEscape(symbol))
	var result struct {
		Price  float64 `json:"price"`
		Volume float64 `json:"volume"`
	}
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.getJSON(ctx, endpoint, &result)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("fetch price %s: %w", symbol, err)
	}
	return result.Price, result.Volume, nil
}

// orderRequest is the order placement payload. ClientOrderID makes retried
// submissions idempotent on the broker side.
type orderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Account       string  `json:"account,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int     `json:"quantity"`
	Type          string  `json:"type"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
}

type orderResponse struct {
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	FilledQuantity int     `json:"filled_quantity"`
	AvgFillPrice   float64 `json:"avg_fill_price"`
}

func (b *RESTBroker) PlaceOrder(ctx context.Context, symbol string, side Side, quantity int, typ OrderType) (OrderHandle, error) {
	payload := orderRequest{
		ClientOrderID: uuid.NewString(),
		Account:       b.Account,
		Symbol:        symbol,
		Side:          string(side),
		Quantity:      quantity,
		Type:          string(typ),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OrderHandle{}, fmt.Errorf("encode order: %w", err)
	}

	var resp orderResponse
	err = withRetry(ctx, b.maxRetries, func() error {
		return b.postJSON(ctx, b.BaseURL+"/api/v1/orders", body, &resp)
	})
	if err != nil {
		return OrderHandle{}, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}
	if OrderStatus(resp.Status) == StatusRejected {
		return OrderHandle{}, fmt.Errorf("place order %s %s: rejected by broker", side, symbol)
	}
	return OrderHandle{
		ID:          resp.OrderID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		SubmittedAt: time.Now(),
	}, nil
}

func (b *RESTBroker) GetOrderStatus(ctx context.Context, handle OrderHandle) (OrderState, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s", b.BaseURL, url.PathEscape(handle.ID))
	var resp orderResponse
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.getJSON(ctx, endpoint, &resp)
	})
	if err != nil {
		return OrderState{}, fmt.Errorf("order status %s: %w", handle.ID, err)
	}
	return OrderState{
		Status:         OrderStatus(resp.Status),
		FilledQuantity: resp.FilledQuantity,
		AvgFillPrice:   resp.AvgFillPrice,
	}, nil
}

func (b *RESTBroker) CancelOrder(ctx context.Context, handle OrderHandle) error {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s", b.BaseURL, url.PathEscape(handle.ID))
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.do(ctx, http.MethodDelete, endpoint, nil, nil)
	})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", handle.ID, err)
	}
	return nil
}

func (b *RESTBroker) AccountEquity(ctx context.Context) (float64, error) {
	endpoint := b.BaseURL + "/api/v1/account"
	if b.Account != "" {
		endpoint += "?account=" + url.QueryEscape(b.Account)
	}
	var result struct {
		Equity      float64 `json:"equity"`
		BuyingPower float64 `json:"buying_power"`
	}
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.getJSON(ctx, endpoint, &result)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	return result.Equity, nil
}

// BuyingPower reports cash available for new positions.
func (b *RESTBroker) BuyingPower(ctx context.Context) (float64, error) {
	endpoint := b.BaseURL + "/api/v1/account"
	if b.Account != "" {
		endpoint += "?account=" + url.QueryEscape(b.Account)
	}
	var result struct {
		BuyingPower float64 `json:"buying_power"`
	}
	err := withRetry(ctx, b.maxRetries, func() error {
		return b.getJSON(ctx, endpoint, &result)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	return result.BuyingPower, nil
}

func (b *RESTBroker) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	return b.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (b *RESTBroker) postJSON(ctx context.Context, endpoint string, body []byte, out interface{}) error {
	return b.do(ctx, http.MethodPost, endpoint, body, out)
}

func (b *RESTBroker) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d, body: %s", method, endpoint, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
