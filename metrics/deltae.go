package metrics

import (
	"fmt"

	"github.com/kovidgoyal/go-parallel"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/kovidgoyal/imgdiff/types"
)

func linear_color(img *types.Image, i int) colorful.Color {
	nc := img.Channels
	if nc == 1 {
		v := float64(img.Pix[i])
		return colorful.LinearRgb(v, v, v)
	}
	p := img.Pix[i*nc : i*nc+3 : i*nc+3]
	return colorful.LinearRgb(float64(p[0]), float64(p[1]), float64(p[2]))
}

// DeltaE returns the per pixel CIEDE2000 color difference between a and b,
// a single channel map on the usual scale where 1.0 is about the smallest
// perceptible difference. The inputs hold linear light values and are
// expected to be in [0, 1]. A single channel image is treated as grey, alpha
// is ignored.
func DeltaE(a, b *types.Image) (*types.Image, error) {
	if err := check_shapes(a, b); err != nil {
		return nil, err
	}
	if a.Channels == 2 {
		return nil, fmt.Errorf("%w: cannot compute color differences for an image with %d channels", types.ErrInvalidArgument, a.Channels)
	}
	ans, err := types.NewImage(a.Width, a.Height, 1)
	if err != nil {
		return nil, err
	}
	w := a.Width
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for i := start * w; i < limit*w; i++ {
			// go-colorful scales Lab to [0, 1]
			ans.Pix[i] = float32(100 * linear_color(a, i).DistanceCIEDE2000(linear_color(b, i)))
		}
	}, 0, a.Height)
	return ans, err
}
