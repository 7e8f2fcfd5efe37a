package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(instrument|side|as_of_ms|entry|target|stop)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(
	instrument string,
	side string,
	asOfMs int64,
	entry, target, stop float64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%.10g|%.10g|%.10g",
		instrument,
		side,
		asOfMs,
		entry,
		target,
		stop,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
