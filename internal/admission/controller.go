// Package admission decides which same-tick candidates may open,
// honoring the concurrency cap, the cash budget, and the daily risk
// governor.
package admission

import (
	"sort"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/sizing"
)

// RejectReason classifies why a candidate was not admitted. Callers
// can distinguish skip-this-candidate outcomes without exceptions or
// sentinel errors.
type RejectReason string

// Rejection reason codes.
const (
	RejectDayBlocked       RejectReason = "DAY_BLOCKED"       // daily risk governor veto
	RejectInstrumentOpen   RejectReason = "INSTRUMENT_OPEN"   // instrument already has a position
	RejectConcurrencyCap   RejectReason = "CONCURRENCY_CAP"   // max concurrent positions reached
	RejectBudgetCap        RejectReason = "BUDGET_CAP"        // remaining budget too small this tick
	RejectCostOverBudget   RejectReason = "COST_OVER_BUDGET"  // cost exceeds the entire budget, permanent
	RejectZeroQuantity     RejectReason = "ZERO_QUANTITY"     // sizer produced no tradable quantity
	RejectSizingFailed     RejectReason = "SIZING_FAILED"     // sizer returned an error
)

// Admission is an accepted candidate with its sized quantity and the
// cash that admission commits.
type Admission struct {
	Signal   *domain.CandidateSignal
	Quantity float64
	Cost     float64
}

// Rejection is a candidate turned away this tick. Candidates are
// skipped, not deferred: they do not retry later in the same tick.
type Rejection struct {
	Signal *domain.CandidateSignal
	Reason RejectReason
}

// Controller performs admission control for one simulation run.
type Controller struct {
	maxConcurrent int
	budget        float64
	perTradeCash  float64
	allowMultiple bool

	sizer    *sizing.Sizer
	governor *risk.Governor
}

// NewController creates a controller from a validated config.
func NewController(cfg domain.SimulationConfig, sizer *sizing.Sizer, governor *risk.Governor) *Controller {
	return &Controller{
		maxConcurrent: cfg.MaxConcurrent,
		budget:        cfg.Budget,
		perTradeCash:  cfg.PerTradeCash,
		allowMultiple: cfg.AllowMultiplePerInstrument,
		sizer:         sizer,
		governor:      governor,
	}
}

// Less is the candidate ordering used for admission: score descending,
// then instrument ascending, then signal ID ascending. The ordering is
// an explicit, tested comparator, not an incidental sort property.
func Less(a, b *domain.CandidateSignal) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Instrument != b.Instrument {
		return a.Instrument < b.Instrument
	}
	return a.SignalID < b.SignalID
}

// Admit selects the subset of same-tick candidates that may open now.
// openCount covers positions that are OPEN or PENDING_ENTRY; committed
// is their reserved cash. Both caps hold simultaneously for every
// accepted candidate.
func (c *Controller) Admit(
	candidates []*domain.CandidateSignal,
	openPositions []*domain.Position,
	committed float64,
) ([]Admission, []Rejection) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := make([]*domain.CandidateSignal, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})

	held := make(map[string]int, len(openPositions))
	for _, p := range openPositions {
		held[p.Instrument]++
	}

	openCount := len(openPositions)
	var accepted []Admission
	var rejected []Rejection

	for _, sig := range ranked {
		if !c.governor.MayOpen(sig.Day()) {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectDayBlocked})
			continue
		}
		if !c.allowMultiple && held[sig.Instrument] > 0 {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectInstrumentOpen})
			continue
		}

		qty, err := c.sizer.Size(sig.Entry, c.perTradeCash)
		if err != nil {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectSizingFailed})
			continue
		}
		if qty <= 0 {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectZeroQuantity})
			continue
		}
		cost := qty * sig.Entry

		// A candidate too large for the entire budget can never be
		// admitted; partial-size admission is unsupported.
		if cost > c.budget {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectCostOverBudget})
			continue
		}
		if openCount+1 > c.maxConcurrent {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectConcurrencyCap})
			continue
		}
		if committed+cost > c.budget {
			rejected = append(rejected, Rejection{Signal: sig, Reason: RejectBudgetCap})
			continue
		}

		accepted = append(accepted, Admission{Signal: sig, Quantity: qty, Cost: cost})
		held[sig.Instrument]++
		openCount++
		committed += cost
	}

	return accepted, rejected
}
