package domain

import (
	"errors"
	"fmt"
)

// Side of a candidate signal.
type Side string

// Side constants.
const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal validation errors.
var (
	ErrSignalInstrument = errors.New("signal instrument is empty")
	ErrSignalSide       = errors.New("signal side must be LONG or SHORT")
	ErrSignalPrices     = errors.New("signal prices must be positive")
	ErrSignalLevels     = errors.New("signal stop/target on wrong side of entry")
)

// CandidateSignal is a proposed trade produced by an external model.
// Immutable once handed to the simulator.
type CandidateSignal struct {
	SignalID   string  // deterministic hash, see idhash
	Instrument string  // ticker
	Side       Side    // LONG | SHORT
	AsOfMs     int64   // signal evaluation timestamp (ms)
	Entry      float64 // reference entry price
	Target     float64 // take-profit level
	Stop       float64 // stop-loss level
	Score      float64 // ranking score, higher wins admission

	// Time limit: at most one of the two is set. Zero means the
	// simulation's default bar limit applies.
	TimeLimitBars int   // holding limit in bars after entry
	TimeLimitMs   int64 // holding limit in elapsed ms after entry

	// Tags carries arbitrary model metadata. The core never reads it.
	Tags map[string]string
}

// Validate checks required fields and the level invariant:
// LONG requires stop < entry < target, SHORT requires target < entry < stop.
// A violating signal is dropped at ingestion, never fixed.
func (s *CandidateSignal) Validate() error {
	if s.Instrument == "" {
		return ErrSignalInstrument
	}
	if s.Side != SideLong && s.Side != SideShort {
		return fmt.Errorf("%w: %q", ErrSignalSide, s.Side)
	}
	if s.Entry <= 0 || s.Target <= 0 || s.Stop <= 0 {
		return fmt.Errorf("%w: entry=%g target=%g stop=%g", ErrSignalPrices, s.Entry, s.Target, s.Stop)
	}
	switch s.Side {
	case SideLong:
		if !(s.Stop < s.Entry && s.Entry < s.Target) {
			return fmt.Errorf("%w: LONG needs stop < entry < target, got stop=%g entry=%g target=%g",
				ErrSignalLevels, s.Stop, s.Entry, s.Target)
		}
	case SideShort:
		if !(s.Target < s.Entry && s.Entry < s.Stop) {
			return fmt.Errorf("%w: SHORT needs target < entry < stop, got target=%g entry=%g stop=%g",
				ErrSignalLevels, s.Target, s.Entry, s.Stop)
		}
	}
	return nil
}

// RiskDistance returns the absolute entry-to-stop distance, the
// denominator of the R-multiple.
func (s *CandidateSignal) RiskDistance() float64 {
	if s.Side == SideLong {
		return s.Entry - s.Stop
	}
	return s.Stop - s.Entry
}

// Day returns the UTC calendar day of the signal.
func (s *CandidateSignal) Day() string {
	return DayKey(s.AsOfMs)
}
