package notifier

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/olekukonko/tablewriter"

	"VCPSentinel/internal/model"
)

// ConsoleNotifier writes alerts to the process log. It is the default channel
// for dry runs and when Telegram is not configured.
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier { return &ConsoleNotifier{} }

func (c *ConsoleNotifier) Notify(_ context.Context, sev Severity, text string) error {
	switch sev {
	case SeverityUrgent:
		log.Printf("[ERROR] %s", text)
	case SeverityWarning:
		log.Printf("[WARN] %s", text)
	default:
		log.Printf("[INFO] %s", text)
	}
	return nil
}

// RenderScanTable writes the scan results as an aligned table, best score
// first. Callers pass candidates already sorted.
func RenderScanTable(out io.Writer, candidates []*model.VCPCandidate, ratings map[string]*model.RSRating) error {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Symbol", "Score", "RS", "Pivot", "Stop", "Depth%", "Waves", "DryUp")

	for i, c := range candidates {
		rsLabel := "-"
		if rs, ok := ratings[c.Symbol]; ok {
			rsLabel = fmt.Sprintf("%.0f", rs.Percentile)
		}
		dryUp := ""
		if c.VolumeDryUp {
			dryUp = "yes"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			c.Symbol,
			fmt.Sprintf("%d", c.Score),
			rsLabel,
			fmt.Sprintf("%.2f", c.PivotPrice),
			fmt.Sprintf("%.2f", c.SuggestedStop),
			fmt.Sprintf("%.1f", c.DepthPct),
			fmt.Sprintf("%d", len(c.Waves)),
			dryUp,
		)
	}
	return table.Render()
}
