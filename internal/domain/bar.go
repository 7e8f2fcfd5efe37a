package domain

import (
	"errors"
	"fmt"
	"time"
)

// Bar validation errors.
var (
	ErrBarRange      = errors.New("bar range invalid: low/high do not bound open/close")
	ErrBarInstrument = errors.New("bar instrument is empty")
	ErrBarTimestamp  = errors.New("bar timestamp is not positive")
)

// Bar represents one OHLCV bar of an instrument's price series.
// Bars are ordered by TimestampMs within an instrument; gaps are
// tolerated, not validated.
type Bar struct {
	Instrument  string
	TimestampMs int64 // bar open time, Unix ms UTC
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Validate checks the bar invariant low <= {open, close} <= high.
// A violating bar is rejected at ingestion, never coerced.
func (b *Bar) Validate() error {
	if b.Instrument == "" {
		return ErrBarInstrument
	}
	if b.TimestampMs <= 0 {
		return ErrBarTimestamp
	}
	if b.Low > b.High {
		return fmt.Errorf("%w: low=%g high=%g", ErrBarRange, b.Low, b.High)
	}
	if b.Open < b.Low || b.Open > b.High {
		return fmt.Errorf("%w: open=%g outside [%g, %g]", ErrBarRange, b.Open, b.Low, b.High)
	}
	if b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("%w: close=%g outside [%g, %g]", ErrBarRange, b.Close, b.Low, b.High)
	}
	return nil
}

// DayKey returns the UTC calendar day of a Unix-ms timestamp.
// All daily risk accounting is keyed by this value.
func DayKey(timestampMs int64) string {
	return time.UnixMilli(timestampMs).UTC().Format("2006-01-02")
}
