package sweep

import (
	"fmt"

	"equity-signal-lab/internal/domain"
)

// Grid enumerates configuration axes. Empty axes keep the base value.
type Grid struct {
	MaxConcurrent        []int
	PerTradeCash         []float64
	MaxDailyStops        []int
	MaxDailyAdverseR     []float64
	AmbiguousBarPolicies []domain.AmbiguousBarPolicy
	DefaultTimeLimitBars []int
}

// Expand produces the cartesian product of the grid over a base
// configuration. Each variant clears RunID so every run derives its
// own from its configuration hash. Axis order is fixed, so the
// variant list is deterministic.
func (g Grid) Expand(base domain.SimulationConfig) []Variant {
	concurrents := g.MaxConcurrent
	if len(concurrents) == 0 {
		concurrents = []int{base.MaxConcurrent}
	}
	cashes := g.PerTradeCash
	if len(cashes) == 0 {
		cashes = []float64{base.PerTradeCash}
	}
	stops := g.MaxDailyStops
	if len(stops) == 0 {
		stops = []int{base.MaxDailyStops}
	}
	adverses := g.MaxDailyAdverseR
	if len(adverses) == 0 {
		adverses = []float64{base.MaxDailyAdverseR}
	}
	policies := g.AmbiguousBarPolicies
	if len(policies) == 0 {
		policies = []domain.AmbiguousBarPolicy{base.AmbiguousBarPolicy}
	}
	limits := g.DefaultTimeLimitBars
	if len(limits) == 0 {
		limits = []int{base.DefaultTimeLimitBars}
	}

	var variants []Variant
	for _, mc := range concurrents {
		for _, cash := range cashes {
			for _, st := range stops {
				for _, adv := range adverses {
					for _, pol := range policies {
						for _, lim := range limits {
							cfg := base
							cfg.RunID = ""
							cfg.MaxConcurrent = mc
							cfg.PerTradeCash = cash
							cfg.MaxDailyStops = st
							cfg.MaxDailyAdverseR = adv
							cfg.AmbiguousBarPolicy = pol
							cfg.DefaultTimeLimitBars = lim

							variants = append(variants, Variant{
								Name: fmt.Sprintf("mc%d_cash%g_stops%d_adv%g_%s_lim%d",
									mc, cash, st, adv, pol, lim),
								Config: cfg,
							})
						}
					}
				}
			}
		}
	}
	return variants
}
