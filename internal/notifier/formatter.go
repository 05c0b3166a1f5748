package notifier

import (
	"fmt"
	"strings"
	"time"

	"VCPSentinel/internal/model"
	"VCPSentinel/internal/risk"
)

// FormatCandidateAlert formats a newly detected setup for Telegram.
func FormatCandidateAlert(cand *model.VCPCandidate, rs *model.RSRating) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔍 <b>VCP setup: %s</b> | %s\n\n", cand.Symbol, time.Now().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Score: %d/100\n", cand.Score))
	b.WriteString(fmt.Sprintf("Pivot: %.2f | Base low: %.2f\n", cand.PivotPrice, cand.BaseLow))
	b.WriteString(fmt.Sprintf("Base depth: %.1f%% | Waves: %d\n", cand.DepthPct, len(cand.Waves)))
	if rs != nil {
		b.WriteString(fmt.Sprintf("RS rating: %.0f\n", rs.Percentile))
	}
	ratios := make([]string, len(cand.ContractionRatios))
	for i, r := range cand.ContractionRatios {
		ratios[i] = fmt.Sprintf("%.2f", r)
	}
	if len(ratios) > 0 {
		b.WriteString(fmt.Sprintf("Contractions: %s\n", strings.Join(ratios, " → ")))
	}
	if cand.VolumeDryUp {
		b.WriteString("Volume dry-up confirmed\n")
	}
	b.WriteString(fmt.Sprintf("\nBuy trigger above %.2f", cand.PivotPrice))
	return b.String()
}

// FormatEntry formats a filled entry order.
func FormatEntry(pos *model.Position, sizing risk.SizingResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🟢 <b>Entered %s</b>\n\n", pos.Symbol))
	b.WriteString(fmt.Sprintf("Fill: %.2f × %d (%.2f)\n", pos.EntryPrice, pos.Quantity, sizing.PositionValue))
	b.WriteString(fmt.Sprintf("Initial stop: %.2f\n", pos.InitialStop))
	b.WriteString(fmt.Sprintf("Risk: %.2f", sizing.RiskAmount))
	return b.String()
}

// FormatStopUpdate formats a stop-level advance or stop raise.
func FormatStopUpdate(pos *model.Position, ev risk.Evaluation) string {
	var b strings.Builder
	if ev.LevelChanged {
		b.WriteString(fmt.Sprintf("📈 <b>%s advanced to stop level %d</b>\n\n", pos.Symbol, ev.StopLevel))
	} else {
		b.WriteString(fmt.Sprintf("📈 <b>%s stop raised</b>\n\n", pos.Symbol))
	}
	b.WriteString(fmt.Sprintf("High: %.2f | Stop: %.2f\n", ev.HighWaterMark, ev.CurrentStop))
	b.WriteString(fmt.Sprintf("Unrealized: %+.1f%%", ev.UnrealizedPct))
	return b.String()
}

// FormatExit formats a completed exit.
func FormatExit(pos *model.Position, exitPrice float64, reason string) string {
	r := pos.RMultiple(exitPrice)
	pct := pos.UnrealizedPct(exitPrice)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔴 <b>Exited %s</b>\n\n", pos.Symbol))
	b.WriteString(fmt.Sprintf("Exit: %.2f × %d\n", exitPrice, pos.Quantity))
	b.WriteString(fmt.Sprintf("Result: %+.1f%% (%+.2fR)\n", pct, r))
	b.WriteString(fmt.Sprintf("Reason: %s", reason))
	return b.String()
}

// FormatScanSummary formats a short Telegram digest of a scan run.
func FormatScanSummary(universe, passedTrend int, candidates []*model.VCPCandidate) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Scan complete</b> | %s\n\n", time.Now().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Universe: %d | Trend passed: %d | Setups: %d\n", universe, passedTrend, len(candidates)))
	for _, c := range candidates {
		b.WriteString(fmt.Sprintf("  %s  score %d  pivot %.2f\n", c.Symbol, c.Score, c.PivotPrice))
	}
	return b.String()
}
