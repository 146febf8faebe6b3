package metrics

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/go-parallel"

	"github.com/kovidgoyal/imgdiff/types"
)

// BlurKernel is the normalised five tap approximation of a Gaussian used for
// the local statistics of SSIM.
var BlurKernel = [5]float64{0.120078, 0.233881, 0.292082, 0.233881, 0.120078}

const (
	ssim_c1 = 0.01 * 0.01
	ssim_c2 = 0.03 * 0.03

	luminance_gamma = 0.4545454545
)

// plane is a single channel image held at double precision for the
// intermediate sums of SSIM.
type plane struct {
	pix           []float64
	width, height int
}

func new_plane(width, height int) *plane {
	return &plane{pix: make([]float64, width*height), width: width, height: height}
}

func (p *plane) to_image() *types.Image {
	img, _ := types.NewImage(p.width, p.height, 1)
	for i, v := range p.pix {
		img.Pix[i] = float32(v)
	}
	return img
}

// reflect maps i into [0, n) mirroring about the edges with the edge sample
// repeated: d c b a | a b c d | d c b a
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func blur_plane(src *plane) (*plane, error) {
	w, h := src.width, src.height
	tmp, dest := new_plane(w, h), new_plane(w, h)
	const r = len(BlurKernel) / 2
	// vertical pass
	err := parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			row := tmp.pix[y*w : (y+1)*w]
			for k, kv := range BlurKernel {
				sy := reflect(y+k-r, h)
				srow := src.pix[sy*w : (sy+1)*w]
				for x, v := range srow {
					row[x] += kv * v
				}
			}
		}
	}, 0, h)
	if err != nil {
		return nil, err
	}
	// horizontal pass
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			srow := tmp.pix[y*w : (y+1)*w]
			row := dest.pix[y*w : (y+1)*w]
			for x := range row {
				var sum float64
				for k, kv := range BlurKernel {
					sum += kv * srow[reflect(x+k-r, w)]
				}
				row[x] = sum
			}
		}
	}, 0, h)
	return dest, err
}

// Blur convolves every channel of img with BlurKernel along both axes. Pixels
// beyond the edges are taken by reflecting the image about its border.
func Blur(img *types.Image) (*types.Image, error) {
	ans, err := types.NewImage(img.Width, img.Height, img.Channels)
	if err != nil {
		return nil, err
	}
	src := new_plane(img.Width, img.Height)
	for c := range img.Channels {
		for i := range src.pix {
			src.pix[i] = float64(img.Pix[i*img.Channels+c])
		}
		b, err := blur_plane(src)
		if err != nil {
			return nil, err
		}
		for i, v := range b.pix {
			ans.Pix[i*img.Channels+c] = float32(v)
		}
	}
	return ans, nil
}

func luminance_plane(img *types.Image) (*plane, error) {
	g := func(v float32) float64 { return math.Pow(max(0, float64(v)), luminance_gamma) }
	ans := new_plane(img.Width, img.Height)
	nc := img.Channels
	switch {
	case nc == 1:
		for i, v := range img.Pix {
			ans.pix[i] = g(v)
		}
	case nc >= 3:
		for i := range ans.pix {
			p := img.Pix[i*nc : i*nc+3 : i*nc+3]
			ans.pix[i] = 0.2126*g(p[0]) + 0.7152*g(p[1]) + 0.0722*g(p[2])
		}
	default:
		return nil, fmt.Errorf("%w: cannot compute the luminance of an image with %d channels", types.ErrInvalidArgument, nc)
	}
	return ans, nil
}

// Luminance returns a single channel image of the approximate luma of img.
// Each color channel has negative values clamped to zero and is raised to the
// power 0.4545454545 before being weighted 0.2126, 0.7152, 0.0722. A
// single channel image is treated as grey. Alpha is ignored.
func Luminance(img *types.Image) (*types.Image, error) {
	p, err := luminance_plane(img)
	if err != nil {
		return nil, err
	}
	return p.to_image(), nil
}

func product(a, b *plane) *plane {
	ans := new_plane(a.width, a.height)
	for i := range ans.pix {
		ans.pix[i] = a.pix[i] * b.pix[i]
	}
	return ans
}

// SSIMMap returns the per pixel structural similarity of the luminance of a and
// b, a single channel map. Identical inputs give a map of ones. The inputs
// are used as is, ComputeErrorImage clips them to [0, 1] first.
func SSIMMap(a, b *types.Image) (*types.Image, error) {
	if err := check_shapes(a, b); err != nil {
		return nil, err
	}
	la, err := luminance_plane(a)
	if err != nil {
		return nil, err
	}
	lb, err := luminance_plane(b)
	if err != nil {
		return nil, err
	}
	var ma, mb, saa, sbb, sab *plane
	for _, x := range []struct {
		dest   **plane
		source *plane
	}{{&ma, la}, {&mb, lb}, {&saa, product(la, la)}, {&sbb, product(lb, lb)}, {&sab, product(la, lb)}} {
		if *x.dest, err = blur_plane(x.source); err != nil {
			return nil, err
		}
	}
	ans := new_plane(a.Width, a.Height)
	for i := range ans.pix {
		mA, mB := ma.pix[i], mb.pix[i]
		// the conversions force rounding of each product so that identical
		// inputs produce exactly 1
		aa, bb, ab := float64(mA*mA), float64(mB*mB), float64(mA*mB)
		sA, sB, sAB := saa.pix[i]-aa, sbb.pix[i]-bb, sab.pix[i]-ab
		p1 := (2*ab + ssim_c1) / (aa + bb + ssim_c1)
		p2 := (2*sAB + ssim_c2) / (sA + sB + ssim_c2)
		ans.pix[i] = p1 * p2
	}
	return ans.to_image(), nil
}
