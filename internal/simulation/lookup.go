package simulation

import (
	"sort"

	"equity-signal-lab/internal/domain"
)

// groupBars splits a flat bar slice into per-instrument series sorted
// by timestamp ascending. Input order does not matter.
func groupBars(bars []domain.Bar) map[string][]domain.Bar {
	series := make(map[string][]domain.Bar)
	for _, b := range bars {
		series[b.Instrument] = append(series[b.Instrument], b)
	}
	for _, s := range series {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].TimestampMs < s[j].TimestampMs
		})
	}
	return series
}

// decisionIndex returns the index of the last bar at or before target,
// the bar a signal stamped at target was evaluated on. Returns -1 when
// no bar exists at or before target.
func decisionIndex(bars []domain.Bar, target int64) int {
	// First bar strictly after target, minus one.
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].TimestampMs > target
	})
	return i - 1
}

// barAtOrAfter returns the index of the first bar at or after target,
// or -1 when the series ends before it.
func barAtOrAfter(bars []domain.Bar, target int64) int {
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].TimestampMs >= target
	})
	if i == len(bars) {
		return -1
	}
	return i
}
