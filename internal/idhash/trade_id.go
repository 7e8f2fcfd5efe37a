package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|signal_id|entry_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, signalID string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", runID, signalID, entryTimeMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// TieBreakSeed derives a deterministic RNG seed for one ambiguous bar
// of one trade. Repeated runs see the same seed, so the proportional
// exit policy stays reproducible.
func TieBreakSeed(signalID string, barTimestampMs int64) int64 {
	data := fmt.Sprintf("%s|%d", signalID, barTimestampMs)
	hash := sha256.Sum256([]byte(data))
	return int64(binary.BigEndian.Uint64(hash[:8]))
}
