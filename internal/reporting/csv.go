package reporting

import (
	"fmt"
	"strings"

	"equity-signal-lab/internal/domain"
)

// RenderCSV renders run metric rows as CSV string.
func RenderCSV(metrics []RunMetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,total_trades,wins,losses,win_rate,net_pnl,profit_factor,expectancy,")
	sb.WriteString("r_median,r_p10,r_p90,max_drawdown,max_consecutive_losses,degenerate_trades\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%d\n",
			m.RunID,
			m.TotalTrades,
			m.Wins,
			m.Losses,
			m.WinRate,
			m.NetPnL,
			m.ProfitFactor,
			m.Expectancy,
			m.RMedian,
			m.RP10,
			m.RP90,
			m.MaxDrawdown,
			m.MaxConsecutiveLosses,
			m.DegenerateTrades,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a closed-trade ledger as CSV string, in the
// order given.
func RenderTradesCSV(trades []*domain.ClosedTrade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,signal_id,instrument,side,signal_time_ms,entry_time_ms,entry_price,")
	sb.WriteString("quantity,target,stop,exit_time_ms,exit_price,exit_reason,pnl,r_multiple,degenerate\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%d,%.6f,%s,%.6f,%.6f,%t\n",
			t.TradeID,
			t.RunID,
			t.SignalID,
			t.Instrument,
			t.Side,
			t.SignalTimeMs,
			t.EntryTimeMs,
			t.EntryPrice,
			t.Quantity,
			t.Target,
			t.Stop,
			t.ExitTimeMs,
			t.ExitPrice,
			t.ExitReason,
			t.PnL,
			t.RMultiple,
			t.Degenerate,
		))
	}

	return sb.String()
}
