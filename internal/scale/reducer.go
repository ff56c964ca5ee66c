package scale

import (
	"slices"

	"git.home.luguber.info/inful/feeder/internal/config"
)

// Reducer collapses a non-empty batch of raw counts into one value.
type Reducer func(values []float64) float64

// Mean is the arithmetic mean.
func Mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median is robust against the occasional corrupted conversion.
func Median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ReducerFor maps the configured reducer name to its function.
func ReducerFor(r config.Reducer) Reducer {
	if r == config.ReducerMedian {
		return Median
	}
	return Mean
}
