package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id from the run's knobs.
// Formula: SHA256(max_concurrent|per_trade_cash|budget|max_stops|max_adverse_r|policy|lag|fractional|time_limit)
// Returns hex-encoded hash truncated to 16 characters for readability.
func ComputeRunID(
	maxConcurrent int,
	perTradeCash, budget float64,
	maxDailyStops int,
	maxDailyAdverseR float64,
	policy string,
	lagBars int,
	allowFractional bool,
	defaultTimeLimitBars int,
) string {
	data := fmt.Sprintf("%d|%.10g|%.10g|%d|%.10g|%s|%d|%t|%d",
		maxConcurrent,
		perTradeCash,
		budget,
		maxDailyStops,
		maxDailyAdverseR,
		policy,
		lagBars,
		allowFractional,
		defaultTimeLimitBars,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
