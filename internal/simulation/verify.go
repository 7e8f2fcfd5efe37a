package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"equity-signal-lab/internal/domain"
)

// LedgerDigest computes a SHA256 digest over a ledger's rows in order.
// Two runs over the same inputs and config must produce the same
// digest; the digest covers every field downstream metrics read.
func LedgerDigest(trades []*domain.ClosedTrade) string {
	h := sha256.New()
	for _, t := range trades {
		fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d|%.10g|%.10g|%d|%.10g|%s|%.10g|%.10g|%t\n",
			t.TradeID, t.SignalID, t.Instrument, t.Side,
			t.SignalTimeMs, t.EntryTimeMs, t.EntryPrice, t.Quantity,
			t.ExitTimeMs, t.ExitPrice, t.ExitReason,
			t.PnL, t.RMultiple, t.Degenerate,
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyDeterminism runs the same simulation twice and compares ledger
// digests. A mismatch means nondeterminism leaked into the event loop
// and is a bug, not market noise.
func VerifyDeterminism(ctx context.Context, cfg domain.SimulationConfig, bars []domain.Bar, signals []*domain.CandidateSignal) error {
	first, err := runOnce(ctx, cfg, bars, signals)
	if err != nil {
		return err
	}
	second, err := runOnce(ctx, cfg, bars, signals)
	if err != nil {
		return err
	}

	if first != second {
		return fmt.Errorf("ledger digests differ between runs: %s vs %s", first, second)
	}
	return nil
}

func runOnce(ctx context.Context, cfg domain.SimulationConfig, bars []domain.Bar, signals []*domain.CandidateSignal) (string, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return "", err
	}
	result, err := engine.Run(ctx, bars, signals)
	if err != nil {
		return "", err
	}
	return LedgerDigest(result.Trades), nil
}
