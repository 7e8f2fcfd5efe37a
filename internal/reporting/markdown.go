package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d\n\n", r.RunCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Signals | %d |\n", r.DataSummary.TotalSignals))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Run Metrics
	sb.WriteString("## Run Metrics\n\n")
	if len(r.RunMetrics) > 0 {
		sb.WriteString("| Run | Trades | Wins | Losses | WinRate | NetPnL | PF | Expectancy | RMedian | RP10 | RP90 | MaxDD | MaxLoss | Degenerate |\n")
		sb.WriteString("|-----|--------|------|--------|---------|--------|----|-----------|---------|------|------|-------|---------|-----------|\n")
		for _, m := range r.RunMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.2f | %.4f | %.4f | %.4f | %.4f | %.4f | %.2f | %d | %d |\n",
				shortID(m.RunID), m.TotalTrades, m.Wins, m.Losses,
				m.WinRate, m.NetPnL, m.ProfitFactor, m.Expectancy,
				m.RMedian, m.RP10, m.RP90,
				m.MaxDrawdown, m.MaxConsecutiveLosses, m.DegenerateTrades))
		}
	} else {
		sb.WriteString("No run metrics available.\n")
	}
	sb.WriteString("\n")

	// Exit Breakdown
	sb.WriteString("## Exit Breakdown\n\n")
	if len(r.ExitBreakdown) > 0 {
		sb.WriteString("| Run | Target | Stop | TimeLimit | RiskStop |\n")
		sb.WriteString("|-----|--------|------|-----------|----------|\n")
		for _, e := range r.ExitBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				shortID(e.RunID), e.TargetExits, e.StopExits, e.TimeLimitExits, e.RiskStopExits))
		}
	} else {
		sb.WriteString("No exit breakdown available.\n")
	}
	sb.WriteString("\n")

	// Instrument Breakdown
	sb.WriteString("## Instrument Breakdown\n\n")
	if len(r.InstrumentBreakdown) > 0 {
		sb.WriteString("| Run | Instrument | Trades | Wins | NetPnL |\n")
		sb.WriteString("|-----|------------|--------|------|--------|\n")
		for _, row := range r.InstrumentBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.2f |\n",
				shortID(row.RunID), row.Instrument, row.Trades, row.Wins, row.NetPnL))
		}
	} else {
		sb.WriteString("No instrument breakdown available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// shortID truncates hash-style run IDs for table readability.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
