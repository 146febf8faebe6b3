package metrics

import (
	"math"
	"slices"
)

// DefaultTrim is the fraction of values discarded from each tail by the MtRSE
// metric.
const DefaultTrim = 1e-6

// Trim returns the trimmed mean of values: they are sorted, floor(skip*N)
// values are dropped from each end, and the rest are averaged. values is not
// modified. Returns NaN if nothing is left to average.
func Trim(values []float32, skip float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	k := int(skip * float64(n))
	if k < 0 {
		k = 0
	}
	if n-2*k <= 0 {
		return math.NaN()
	}
	return mean(sorted[k : n-k])
}

func mean(values []float32) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}
