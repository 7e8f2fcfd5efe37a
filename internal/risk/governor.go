// Package risk implements the daily risk governor: per-day loss
// accounting with a one-way OPEN -> BLOCKED transition.
package risk

import (
	"equity-signal-lab/internal/domain"
)

// Governor tracks running risk state per calendar day and vetoes new
// entries once a configured limit is breached. It owns the per-day
// state; callers read copies via StateFor.
type Governor struct {
	maxStops    int     // 0 disables the stop-count limit
	maxAdverseR float64 // negative threshold; 0 disables

	days map[string]*domain.DailyRiskState
}

// NewGovernor creates a governor with the given limits. A zero value
// disables the respective limit.
func NewGovernor(maxStops int, maxAdverseR float64) *Governor {
	return &Governor{
		maxStops:    maxStops,
		maxAdverseR: maxAdverseR,
		days:        make(map[string]*domain.DailyRiskState),
	}
}

// RecordClose folds a closed trade into its exit day's state and fires
// the OPEN -> BLOCKED transition when a limit is reached. Once blocked
// a day never un-blocks; the next calendar day starts fresh.
func (g *Governor) RecordClose(t *domain.ClosedTrade) {
	state := g.stateFor(t.Day())

	if t.ExitReason == domain.ExitReasonStop {
		state.StopExits++
	}
	state.CumulativeR += t.RMultiple

	if state.Blocked {
		return
	}
	if g.maxStops > 0 && state.StopExits >= g.maxStops {
		state.Blocked = true
	}
	if g.maxAdverseR < 0 && state.CumulativeR <= g.maxAdverseR {
		state.Blocked = true
	}
}

// MayOpen reports whether new entries are allowed on the given day.
// Days the governor has never seen start OPEN with zeroed counters;
// the prior day's counters must not carry over.
func (g *Governor) MayOpen(day string) bool {
	state, ok := g.days[day]
	if !ok {
		return true
	}
	return !state.Blocked
}

// StateFor returns a copy of the day's state. Unseen days return a
// fresh OPEN state.
func (g *Governor) StateFor(day string) domain.DailyRiskState {
	if state, ok := g.days[day]; ok {
		return *state
	}
	return domain.DailyRiskState{Day: day}
}

func (g *Governor) stateFor(day string) *domain.DailyRiskState {
	state, ok := g.days[day]
	if !ok {
		state = &domain.DailyRiskState{Day: day}
		g.days[day] = state
	}
	return state
}
