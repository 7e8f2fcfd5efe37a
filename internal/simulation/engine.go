// Package simulation drives candidate signals and price series through
// admission control, exit resolution, and daily risk governance,
// producing an ordered ledger of closed trades.
package simulation

import (
	"context"
	"fmt"
	"sort"

	"equity-signal-lab/internal/admission"
	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/exits"
	"equity-signal-lab/internal/idhash"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/sizing"
)

// DroppedSignal records a malformed candidate rejected at the engine
// boundary, with the reason it was dropped. Dropped rows never abort
// the run.
type DroppedSignal struct {
	Signal *domain.CandidateSignal
	Err    string
}

// Result is the output of one simulation run. The ledger order is
// deterministic: closes are processed in (exit time, instrument,
// signal ID) order, and closes precede opens at equal timestamps.
type Result struct {
	RunID      string
	Config     domain.SimulationConfig
	Trades     []*domain.ClosedTrade
	Rejections []admission.Rejection
	Dropped    []DroppedSignal
	DayStates  []domain.DailyRiskState
}

// Engine is the single-threaded, deterministic execution simulator.
// It exclusively owns the clock and the open-position set for the
// lifetime of one run; collaborators receive read copies or explicit
// mutation methods, never raw handles.
type Engine struct {
	cfg        domain.SimulationConfig
	resolver   *exits.Resolver
	governor   *risk.Governor
	controller *admission.Controller
}

// NewEngine validates the configuration and wires the run's
// collaborators. Configuration errors are fatal before any event is
// processed.
func NewEngine(cfg domain.SimulationConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}
	if cfg.RunID == "" {
		cfg.RunID = idhash.ComputeRunID(
			cfg.MaxConcurrent, cfg.PerTradeCash, cfg.Budget,
			cfg.MaxDailyStops, cfg.MaxDailyAdverseR,
			string(cfg.AmbiguousBarPolicy), cfg.ExecutionLagBars,
			cfg.AllowFractional, cfg.DefaultTimeLimitBars,
		)
	}

	governor := risk.NewGovernor(cfg.MaxDailyStops, cfg.MaxDailyAdverseR)
	sizer := sizing.NewSizer(cfg.AllowFractional, cfg.FractionalPrecision)

	return &Engine{
		cfg:        cfg,
		resolver:   exits.NewResolver(cfg.AmbiguousBarPolicy),
		governor:   governor,
		controller: admission.NewController(cfg, sizer, governor),
	}, nil
}

// active is a position with its scheduled exit.
type active struct {
	pos  *domain.Position
	exit exits.Resolution
}

// runState is the mutable state of one run, owned by the engine.
type runState struct {
	series    map[string][]domain.Bar
	open      []*active
	committed float64
	result    *Result
}

// Run executes the simulation over materialized inputs. Bars are
// assumed validated at ingestion; signals are re-validated here and
// malformed ones dropped with a reason. Given identical inputs and
// config, repeated runs yield identical results.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, signals []*domain.CandidateSignal) (*Result, error) {
	st := &runState{
		series: groupBars(bars),
		result: &Result{RunID: e.cfg.RunID, Config: e.cfg},
	}

	valid := e.screenSignals(signals, st.result)

	// Global timeline: candidate due-times ascending. Exit events are
	// interleaved by flushing scheduled closes up to each tick.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].AsOfMs != valid[j].AsOfMs {
			return valid[i].AsOfMs < valid[j].AsOfMs
		}
		return admission.Less(valid[i], valid[j])
	})

	for i := 0; i < len(valid); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tick := valid[i].AsOfMs
		j := i
		for j < len(valid) && valid[j].AsOfMs == tick {
			j++
		}
		due := valid[i:j]
		i = j

		// Closes are applied before opens at the same timestamp:
		// capacity is freed before it is consumed. Load-bearing for
		// the concurrency cap, not incidental iteration order.
		e.flushCloses(st, tick)
		e.admit(st, due, tick)
	}

	// Drain remaining scheduled exits.
	e.flushCloses(st, int64(1)<<62)

	st.result.DayStates = e.dayStates(st.result.Trades)
	return st.result, nil
}

// screenSignals drops malformed candidates, keeping the reason.
func (e *Engine) screenSignals(signals []*domain.CandidateSignal, result *Result) []*domain.CandidateSignal {
	valid := make([]*domain.CandidateSignal, 0, len(signals))
	for _, sig := range signals {
		if err := sig.Validate(); err != nil {
			result.Dropped = append(result.Dropped, DroppedSignal{Signal: sig, Err: err.Error()})
			continue
		}
		if sig.SignalID == "" {
			sig = cloneWithID(sig)
		}
		valid = append(valid, sig)
	}
	return valid
}

func cloneWithID(sig *domain.CandidateSignal) *domain.CandidateSignal {
	c := *sig
	c.SignalID = idhash.ComputeSignalID(c.Instrument, string(c.Side), c.AsOfMs, c.Entry, c.Target, c.Stop)
	return &c
}

// flushCloses applies every scheduled exit at or before tick, in
// (exit time, instrument, signal ID) order.
func (e *Engine) flushCloses(st *runState, tick int64) {
	for {
		idx := e.nextClose(st, tick)
		if idx < 0 {
			return
		}
		a := st.open[idx]
		st.open = append(st.open[:idx], st.open[idx+1:]...)
		e.close(st, a)
	}
}

// nextClose picks the earliest scheduled exit due at or before tick.
func (e *Engine) nextClose(st *runState, tick int64) int {
	best := -1
	for i, a := range st.open {
		if a.exit.ExitTimeMs > tick {
			continue
		}
		if best < 0 || closeBefore(a, st.open[best]) {
			best = i
		}
	}
	return best
}

func closeBefore(a, b *active) bool {
	if a.exit.ExitTimeMs != b.exit.ExitTimeMs {
		return a.exit.ExitTimeMs < b.exit.ExitTimeMs
	}
	if a.pos.Instrument != b.pos.Instrument {
		return a.pos.Instrument < b.pos.Instrument
	}
	return a.pos.SignalID < b.pos.SignalID
}

// close converts a position and its resolved exit into a ledger row,
// records it with the governor, and frees the committed cash.
func (e *Engine) close(st *runState, a *active) {
	p := a.pos
	p.State = domain.PositionClosed
	st.committed -= p.CommittedCash

	pnl := (a.exit.ExitPrice - p.EntryPrice) * p.Quantity
	if p.Side == domain.SideShort {
		pnl = -pnl
	}

	riskDist := p.RiskDistance()
	rMultiple := 0.0
	if riskDist > 0 && p.Quantity > 0 {
		rMultiple = pnl / (riskDist * p.Quantity)
	}

	trade := &domain.ClosedTrade{
		TradeID:      idhash.ComputeTradeID(e.cfg.RunID, p.SignalID, p.EntryTimeMs),
		RunID:        e.cfg.RunID,
		SignalID:     p.SignalID,
		Instrument:   p.Instrument,
		Side:         p.Side,
		SignalTimeMs: p.SignalTimeMs,
		EntryTimeMs:  p.EntryTimeMs,
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		Target:       p.Target,
		Stop:         p.Stop,
		ExitTimeMs:   a.exit.ExitTimeMs,
		ExitPrice:    a.exit.ExitPrice,
		ExitReason:   a.exit.Reason,
		PnL:          pnl,
		RMultiple:    rMultiple,
		Degenerate:   a.exit.Degenerate,
	}
	st.result.Trades = append(st.result.Trades, trade)

	blockedBefore := !e.governor.MayOpen(trade.Day())
	e.governor.RecordClose(trade)

	if e.cfg.FlattenOnBlock && !blockedBefore && !e.governor.MayOpen(trade.Day()) {
		e.flatten(st, trade.ExitTimeMs)
	}
}

// flatten reschedules every remaining position to exit at the close of
// the first bar at or after the block timestamp, with reason
// DAILY_RISK_STOP, unless its normal exit comes sooner.
func (e *Engine) flatten(st *runState, blockedAtMs int64) {
	for _, a := range st.open {
		bars := st.series[a.pos.Instrument]
		from := blockedAtMs
		if a.pos.EntryTimeMs > from {
			from = a.pos.EntryTimeMs
		}
		idx := barAtOrAfter(bars, from)
		if idx < 0 {
			continue
		}
		b := bars[idx]
		if b.TimestampMs < a.exit.ExitTimeMs {
			a.exit = exits.Resolution{
				ExitTimeMs: b.TimestampMs,
				ExitPrice:  b.Close,
				Reason:     domain.ExitReasonDailyRiskStop,
			}
		}
	}
}

// admit runs admission control for candidates due at tick and opens
// accepted positions at the configured execution lag.
func (e *Engine) admit(st *runState, due []*domain.CandidateSignal, tick int64) {
	positions := make([]*domain.Position, len(st.open))
	for i, a := range st.open {
		positions[i] = a.pos
	}

	accepted, rejected := e.controller.Admit(due, positions, st.committed)
	st.result.Rejections = append(st.result.Rejections, rejected...)

	for _, adm := range accepted {
		e.open(st, adm, tick)
	}
}

// open fills an admitted candidate at the open of the bar lag bars
// after its decision bar. The decision bar's own close is never used
// for entry: that would be look-ahead.
func (e *Engine) open(st *runState, adm admission.Admission, tick int64) {
	sig := adm.Signal
	bars := st.series[sig.Instrument]

	limitBars, limitMs := sig.TimeLimitBars, sig.TimeLimitMs
	if limitBars == 0 && limitMs == 0 {
		limitBars = e.cfg.DefaultTimeLimitBars
	}

	pos := &domain.Position{
		SignalID:      sig.SignalID,
		Instrument:    sig.Instrument,
		Side:          sig.Side,
		State:         domain.PositionPendingEntry,
		SignalTimeMs:  sig.AsOfMs,
		Quantity:      adm.Quantity,
		Target:        sig.Target,
		Stop:          sig.Stop,
		TimeLimitBars: limitBars,
		TimeLimitMs:   limitMs,
		CommittedCash: adm.Cost,
	}

	decision := decisionIndex(bars, sig.AsOfMs)
	entryIdx := decision + e.cfg.ExecutionLagBars
	if decision < 0 || entryIdx >= len(bars) {
		// No bar can fill the entry: either the signal's as-of precedes
		// the instrument's data entirely, or the series ends before the
		// lag elapses. Degenerate round trip at the reference price.
		pos.EntryTimeMs = tick
		pos.EntryPrice = sig.Entry
		pos.State = domain.PositionOpen
		st.committed += adm.Cost
		st.open = append(st.open, &active{
			pos: pos,
			exit: exits.Resolution{
				ExitTimeMs: tick,
				ExitPrice:  sig.Entry,
				Reason:     domain.ExitReasonTimeLimit,
				Degenerate: true,
			},
		})
		return
	}

	entryBar := bars[entryIdx]
	pos.EntryTimeMs = entryBar.TimestampMs
	pos.EntryPrice = entryBar.Open
	pos.State = domain.PositionOpen
	st.committed += adm.Cost

	res, ok := e.gapExit(pos, entryBar)
	if !ok {
		var err error
		res, err = e.resolver.Resolve(pos, bars[entryIdx:])
		if err != nil {
			// Levels were validated at admission; a resolver failure
			// here is a programming error and the trade degrades to a
			// flagged immediate exit rather than silently vanishing.
			res = exits.Resolution{
				ExitTimeMs: entryBar.TimestampMs,
				ExitPrice:  pos.EntryPrice,
				Reason:     domain.ExitReasonTimeLimit,
				Degenerate: true,
			}
		}
	}

	st.open = append(st.open, &active{pos: pos, exit: res})
}

// gapExit handles entry fills that gap through a boundary: the entry
// bar opens at or beyond the stop or target, so the position closes at
// its own fill price. Checked before the resolver, which requires
// levels on the correct side of the entry.
func (e *Engine) gapExit(p *domain.Position, entryBar domain.Bar) (exits.Resolution, bool) {
	var throughStop, throughTarget bool
	if p.Side == domain.SideLong {
		throughStop = p.EntryPrice <= p.Stop
		throughTarget = p.EntryPrice >= p.Target
	} else {
		throughStop = p.EntryPrice >= p.Stop
		throughTarget = p.EntryPrice <= p.Target
	}

	switch {
	case throughStop:
		return exits.Resolution{ExitTimeMs: entryBar.TimestampMs, ExitPrice: p.EntryPrice, Reason: domain.ExitReasonStop}, true
	case throughTarget:
		return exits.Resolution{ExitTimeMs: entryBar.TimestampMs, ExitPrice: p.EntryPrice, Reason: domain.ExitReasonTarget}, true
	}
	return exits.Resolution{}, false
}

// dayStates snapshots the governor state for every day the ledger
// touched, sorted by day.
func (e *Engine) dayStates(trades []*domain.ClosedTrade) []domain.DailyRiskState {
	seen := make(map[string]struct{})
	var days []string
	for _, t := range trades {
		day := t.Day()
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Strings(days)

	states := make([]domain.DailyRiskState, len(days))
	for i, day := range days {
		states[i] = e.governor.StateFor(day)
	}
	return states
}
