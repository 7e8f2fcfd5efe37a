// Package sizing converts cash allocations into tradable quantities.
package sizing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidEntryPrice is returned for non-positive entry prices.
var ErrInvalidEntryPrice = errors.New("entry price must be positive")

// Sizer computes position quantities from a per-trade cash budget.
type Sizer struct {
	allowFractional bool
	precision       int // decimal places in fractional mode
}

// NewSizer creates a Sizer. precision is only used in fractional mode.
func NewSizer(allowFractional bool, precision int) *Sizer {
	if precision < 0 {
		precision = 0
	}
	return &Sizer{
		allowFractional: allowFractional,
		precision:       precision,
	}
}

// Size returns the quantity purchasable with cash at entryPrice.
// Integer mode: floor(cash / entry). Fractional mode: cash / entry
// rounded to the configured precision. A zero result means the
// candidate cannot be sized and must be dropped by admission.
func (s *Sizer) Size(entryPrice, cash float64) (float64, error) {
	if entryPrice <= 0 {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidEntryPrice, entryPrice)
	}
	if cash <= 0 {
		return 0, nil
	}

	raw := cash / entryPrice
	if !s.allowFractional {
		return math.Floor(raw), nil
	}

	scale := math.Pow10(s.precision)
	return math.Round(raw*scale) / scale, nil
}
