package metrics

import "math"

// MSEToPSNR converts a mean squared error, of values with a peak of 1.0, to
// the peak signal to noise ratio in decibels. An error of zero gives +Inf.
func MSEToPSNR(mse float64) float64 {
	return -10 * math.Log10(mse)
}
