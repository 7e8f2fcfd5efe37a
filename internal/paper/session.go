// Package paper runs the execution rules against a live bar stream
// instead of a materialized history. The same admission, exit, and
// risk components drive both; only the event source differs.
package paper

import (
	"fmt"
	"sync"

	"equity-signal-lab/internal/admission"
	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/exits"
	"equity-signal-lab/internal/idhash"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/sizing"
)

// tracked is an open or pending position with its stream progress.
type tracked struct {
	pos *domain.Position

	// lagRemaining counts bars still to observe before the entry
	// fills. The fill happens at the open of the bar that brings it
	// to zero.
	lagRemaining int

	// held counts bars seen since entry, entry bar excluded.
	held int

	filled bool
}

// Session is a paper-trading session over an incremental bar stream.
// Safe for concurrent use: feeds and signal sources typically run on
// separate goroutines.
type Session struct {
	mu sync.Mutex

	cfg      domain.SimulationConfig
	resolver *exits.Resolver
	governor *risk.Governor
	ctrl     *admission.Controller

	open      []*tracked
	committed float64
	ledger    []*domain.ClosedTrade

	// flattenFrom/flattenDay, when set, force remaining positions out
	// at the close of their next bar on the blocked day. A block never
	// carries into the next calendar day.
	flattenFrom int64
	flattenDay  string
	flattening  bool
}

// NewSession validates the configuration and creates a session.
func NewSession(cfg domain.SimulationConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
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

	return &Session{
		cfg:      cfg,
		resolver: exits.NewResolver(cfg.AmbiguousBarPolicy),
		governor: governor,
		ctrl:     admission.NewController(cfg, sizer, governor),
	}, nil
}

// Submit runs admission control for one candidate as it arrives.
// Accepted candidates wait for their execution lag before filling.
// The returned rejection is nil on acceptance.
func (s *Session) Submit(sig *domain.CandidateSignal) (*admission.Rejection, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make([]*domain.Position, len(s.open))
	for i, tr := range s.open {
		positions[i] = tr.pos
	}

	accepted, rejected := s.ctrl.Admit([]*domain.CandidateSignal{sig}, positions, s.committed)
	if len(rejected) > 0 {
		rej := rejected[0]
		return &rej, nil
	}

	adm := accepted[0]
	limitBars, limitMs := sig.TimeLimitBars, sig.TimeLimitMs
	if limitBars == 0 && limitMs == 0 {
		limitBars = s.cfg.DefaultTimeLimitBars
	}

	s.open = append(s.open, &tracked{
		pos: &domain.Position{
			SignalID:      adm.Signal.SignalID,
			Instrument:    adm.Signal.Instrument,
			Side:          adm.Signal.Side,
			State:         domain.PositionPendingEntry,
			SignalTimeMs:  adm.Signal.AsOfMs,
			Quantity:      adm.Quantity,
			Target:        adm.Signal.Target,
			Stop:          adm.Signal.Stop,
			TimeLimitBars: limitBars,
			TimeLimitMs:   limitMs,
			CommittedCash: adm.Cost,
		},
		lagRemaining: s.cfg.ExecutionLagBars,
	})
	s.committed += adm.Cost

	return nil, nil
}

// OnBar advances the session by one closed bar and returns the trades
// it closed. Pending entries on the bar's instrument fill at its open
// once their lag elapses; open positions are stepped against its range.
func (s *Session) OnBar(bar domain.Bar) ([]*domain.ClosedTrade, error) {
	if err := bar.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var closed []*domain.ClosedTrade

	kept := s.open[:0]
	for _, tr := range s.open {
		if tr.pos.Instrument != bar.Instrument {
			kept = append(kept, tr)
			continue
		}

		res, done, err := s.advance(tr, bar)
		if err != nil {
			// Levels were validated at admission; degrade to a flagged
			// immediate exit rather than dropping the position.
			res = exits.Resolution{
				ExitTimeMs: bar.TimestampMs,
				ExitPrice:  tr.pos.EntryPrice,
				Reason:     domain.ExitReasonTimeLimit,
				Degenerate: true,
			}
			done = true
		}
		if !done {
			kept = append(kept, tr)
			continue
		}
		closed = append(closed, s.close(tr, res))
	}
	s.open = kept

	for _, t := range closed {
		blockedBefore := !s.governor.MayOpen(t.Day())
		s.governor.RecordClose(t)
		if s.cfg.FlattenOnBlock && !blockedBefore && !s.governor.MayOpen(t.Day()) {
			s.flattening = true
			s.flattenFrom = t.ExitTimeMs
			s.flattenDay = t.Day()
		}
	}

	return closed, nil
}

// advance moves one tracked position through the bar. It fills pending
// entries, then applies first-touch stepping or the flatten rule.
func (s *Session) advance(tr *tracked, bar domain.Bar) (exits.Resolution, bool, error) {
	if !tr.filled {
		if tr.lagRemaining > 0 {
			tr.lagRemaining--
			if tr.lagRemaining > 0 {
				return exits.Resolution{}, false, nil
			}
		}
		tr.filled = true
		tr.pos.EntryTimeMs = bar.TimestampMs
		tr.pos.EntryPrice = bar.Open
		tr.pos.State = domain.PositionOpen

		if res, ok := gapExit(tr.pos, bar); ok {
			return res, true, nil
		}
		return s.resolver.Step(tr.pos, bar, 0)
	}

	tr.held++
	res, done, err := s.resolver.Step(tr.pos, bar, tr.held)
	if err != nil || done {
		return res, done, err
	}

	if s.flattening && bar.TimestampMs >= s.flattenFrom && domain.DayKey(bar.TimestampMs) == s.flattenDay {
		return exits.Resolution{
			ExitTimeMs: bar.TimestampMs,
			ExitPrice:  bar.Close,
			Reason:     domain.ExitReasonDailyRiskStop,
		}, true, nil
	}

	return exits.Resolution{}, false, nil
}

// gapExit mirrors the backtest rule: an entry filling at or beyond a
// boundary closes at its own fill price.
func gapExit(p *domain.Position, entryBar domain.Bar) (exits.Resolution, bool) {
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

// close converts a tracked position into a ledger row and frees its
// committed cash.
func (s *Session) close(tr *tracked, res exits.Resolution) *domain.ClosedTrade {
	p := tr.pos
	p.State = domain.PositionClosed
	s.committed -= p.CommittedCash

	pnl := (res.ExitPrice - p.EntryPrice) * p.Quantity
	if p.Side == domain.SideShort {
		pnl = -pnl
	}

	riskDist := p.RiskDistance()
	rMultiple := 0.0
	if riskDist > 0 && p.Quantity > 0 {
		rMultiple = pnl / (riskDist * p.Quantity)
	}

	trade := &domain.ClosedTrade{
		TradeID:      idhash.ComputeTradeID(s.cfg.RunID, p.SignalID, p.EntryTimeMs),
		RunID:        s.cfg.RunID,
		SignalID:     p.SignalID,
		Instrument:   p.Instrument,
		Side:         p.Side,
		SignalTimeMs: p.SignalTimeMs,
		EntryTimeMs:  p.EntryTimeMs,
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		Target:       p.Target,
		Stop:         p.Stop,
		ExitTimeMs:   res.ExitTimeMs,
		ExitPrice:    res.ExitPrice,
		ExitReason:   res.Reason,
		PnL:          pnl,
		RMultiple:    rMultiple,
		Degenerate:   res.Degenerate,
	}
	s.ledger = append(s.ledger, trade)
	return trade
}

// Ledger returns a copy of the closed trades so far, in close order.
func (s *Session) Ledger() []*domain.ClosedTrade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.ClosedTrade, len(s.ledger))
	for i, t := range s.ledger {
		c := *t
		out[i] = &c
	}
	return out
}

// OpenCount returns the number of open or pending positions.
func (s *Session) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Committed returns the cash currently reserved by open positions.
func (s *Session) Committed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// RunID returns the session's run identifier.
func (s *Session) RunID() string {
	return s.cfg.RunID
}
