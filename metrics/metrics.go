// Package metrics computes per pixel error maps and scalar error metrics
// between a candidate image and a reference image.
package metrics

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/go-parallel"

	"github.com/kovidgoyal/imgdiff/types"
)

var _ = fmt.Print

type Metric int

const (
	MAE Metric = iota
	MAPE
	SMAPE
	MSE
	MScE
	MRSE
	MtRSE
	MRScE
	SSIM
	DeltaE2000
)

var metric_names = [...]string{
	MAE:        "MAE",
	MAPE:       "MAPE",
	SMAPE:      "SMAPE",
	MSE:        "MSE",
	MScE:       "MScE",
	MRSE:       "MRSE",
	MtRSE:      "MtRSE",
	MRScE:      "MRScE",
	SSIM:       "SSIM",
	DeltaE2000: "DeltaE2000",
}

// AllMetrics lists every metric in a stable order.
var AllMetrics = []Metric{MAE, MAPE, SMAPE, MSE, MScE, MRSE, MtRSE, MRScE, SSIM, DeltaE2000}

func (m Metric) String() string {
	if m >= 0 && int(m) < len(metric_names) {
		return metric_names[m]
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric returns the metric with the specified name. Names are case
// sensitive, for example: "MAE", "MScE" or "SSIM".
func ParseMetric(name string) (Metric, error) {
	for i, n := range metric_names {
		if n == name {
			return Metric(i), nil
		}
	}
	return -1, fmt.Errorf("%w: unknown metric: %q", types.ErrInvalidArgument, name)
}

const epsilon = 1e-2

func check_shapes(img, ref *types.Image) error {
	if img == nil || ref == nil {
		return fmt.Errorf("%w: nil image", types.ErrInvalidArgument)
	}
	if !img.SameShape(ref) {
		return fmt.Errorf("%w: candidate %s and reference %s do not have the same shape", types.ErrInvalidArgument, img, ref)
	}
	return nil
}

// sanitized returns a copy of img with non-finite and negative values
// replaced by zero.
func sanitized(img *types.Image) *types.Image {
	ans := img.Clone()
	bad := 0
	for i, v := range ans.Pix {
		switch {
		case math.IsNaN(float64(v)) || math.IsInf(float64(v), 0):
			ans.Pix[i] = 0
			bad++
		case v < 0:
			ans.Pix[i] = 0
		}
	}
	if bad > 0 {
		logger().Warn("replaced non-finite candidate samples with zero", "count", bad)
	}
	return ans
}

func clipped(img *types.Image, lo, hi float32) *types.Image {
	ans := img.Clone()
	for i, v := range ans.Pix {
		ans.Pix[i] = max(lo, min(v, hi))
	}
	return ans
}

type elementwise func(img, ref float64) float64

func absolute_error(img, ref float64) float64 { return math.Abs(img - ref) }

func absolute_percentage_error(img, ref float64) float64 {
	return math.Abs(img-ref) / (epsilon + ref)
}

func symmetric_absolute_percentage_error(img, ref float64) float64 {
	return math.Abs(img-ref) / (epsilon + (ref+img)/2)
}

func squared_error(img, ref float64) float64 {
	d := img - ref
	return d * d
}

func relative_squared_error(img, ref float64) float64 {
	d := img - ref
	return d * d / (epsilon + ref*ref)
}

func apply(f elementwise, img, ref *types.Image) (*types.Image, error) {
	ans, err := types.NewImage(img.Width, img.Height, img.Channels)
	if err != nil {
		return nil, err
	}
	stride := img.Stride()
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for i := start * stride; i < limit*stride; i++ {
			ans.Pix[i] = float32(f(float64(img.Pix[i]), float64(ref.Pix[i])))
		}
	}, 0, img.Height)
	return ans, err
}

func zero_non_finite(img *types.Image) {
	for i, v := range img.Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			img.Pix[i] = 0
		}
	}
}

// ComputeErrorImage returns the per pixel error map of metric m between the
// candidate img and the reference ref, which must have the same shape.
// Non-finite and negative candidate samples are treated as zero. Neither
// input is modified.
//
// Per channel metrics return a map with the channels of the inputs. SSIM and
// DeltaE2000 return a single channel map. MtRSE is not a per pixel quantity:
// it returns a 1x1 single channel map holding the trimmed mean of the MRSE
// map, so that ComputeError gives the same value for it as for every other
// metric.
func ComputeErrorImage(m Metric, img, ref *types.Image) (*types.Image, error) {
	if err := check_shapes(img, ref); err != nil {
		return nil, err
	}
	img = sanitized(img)
	switch m {
	case MAE:
		return apply(absolute_error, img, ref)
	case MAPE:
		return apply(absolute_percentage_error, img, ref)
	case SMAPE:
		return apply(symmetric_absolute_percentage_error, img, ref)
	case MSE:
		return apply(squared_error, img, ref)
	case MScE:
		return apply(squared_error, clipped(img, 0, 1), clipped(ref, 0, 1))
	case MRSE:
		return apply(relative_squared_error, img, ref)
	case MtRSE:
		rse, err := apply(relative_squared_error, img, ref)
		if err != nil {
			return nil, err
		}
		zero_non_finite(rse)
		ans, _ := types.NewImage(1, 1, 1)
		ans.Pix[0] = float32(Trim(rse.Pix, DefaultTrim))
		return ans, nil
	case MRScE:
		return apply(relative_squared_error, clipped(img, 0, 100), clipped(ref, 0, 100))
	case SSIM:
		return SSIMMap(clipped(img, 0, 1), clipped(ref, 0, 1))
	case DeltaE2000:
		return DeltaE(clipped(img, 0, 1), clipped(ref, 0, 1))
	}
	return nil, fmt.Errorf("%w: unknown metric: %q", types.ErrInvalidArgument, m.String())
}

// ComputeError returns the scalar value of metric m: the error map with
// non-finite entries zeroed, averaged over channels and then over pixels.
func ComputeError(m Metric, img, ref *types.Image) (float64, error) {
	emap, err := ComputeErrorImage(m, img, ref)
	if err != nil {
		return 0, err
	}
	return Reduce(emap), nil
}

// Reduce averages an error map over its channels and then over its pixels.
// Non-finite entries count as zero. emap is not modified.
func Reduce(emap *types.Image) float64 {
	var total float64
	nc := emap.Channels
	for i := range emap.NumPixels() {
		var px float64
		for _, v := range emap.Pix[i*nc : (i+1)*nc] {
			if !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0) {
				px += float64(v)
			}
		}
		total += px / float64(nc)
	}
	return total / float64(emap.NumPixels())
}

// ComputeErrorByName is ComputeError with the metric given by name.
func ComputeErrorByName(name string, img, ref *types.Image) (float64, error) {
	m, err := ParseMetric(name)
	if err != nil {
		return 0, err
	}
	return ComputeError(m, img, ref)
}
