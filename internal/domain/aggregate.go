package domain

// RunAggregate holds per-run metrics computed from the closed-trade
// ledger. Downstream reporting reads these fields without re-deriving
// execution logic.
type RunAggregate struct {
	RunID string

	// Counts
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // wins / total trades

	// Outcome
	NetPnL       float64
	GrossProfit  float64 // sum of winning PnL
	GrossLoss    float64 // absolute sum of losing PnL
	ProfitFactor float64 // gross profit / gross loss
	Expectancy   float64 // mean realized R

	// R distribution
	RMedian float64
	RP10    float64 // 10th percentile
	RP25    float64 // 25th percentile
	RP75    float64 // 75th percentile
	RP90    float64 // 90th percentile
	RMin    float64
	RMax    float64
	RStddev float64

	// Drawdown (over cumulative PnL in ledger order)
	MaxDrawdown          float64
	MaxConsecutiveLosses int

	// Exit breakdown
	TargetExits      int
	StopExits        int
	TimeLimitExits   int
	RiskStopExits    int
	DegenerateTrades int
}
