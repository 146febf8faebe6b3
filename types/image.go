package types

import (
	"fmt"
	"image"
	"math"
)

// Image is an in-memory floating point image of Height rows, Width columns
// and Channels interleaved channels. Values are not bounded to [0, 1].
type Image struct {
	// Pix holds the image's samples. The sample for channel c of the pixel at
	// (x, y) is at Pix[(y*Width+x)*Channels+c].
	Pix []float32
	// Width, Height and Channels are the image dimensions.
	Width, Height, Channels int
}

func check_dims(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: image dimensions must be positive: width=%d height=%d", ErrInvalidArgument, width, height)
	}
	if channels <= 0 {
		return fmt.Errorf("%w: image must have at least one channel: channels=%d", ErrInvalidArgument, channels)
	}
	return nil
}

// NewImage returns a zero filled image with the specified dimensions.
func NewImage(width, height, channels int) (*Image, error) {
	if err := check_dims(width, height, channels); err != nil {
		return nil, err
	}
	return &Image{
		Pix:      make([]float32, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

// NewImageWithPixels wraps p, which must hold exactly width*height*channels
// samples, without copying it.
func NewImageWithPixels(p []float32, width, height, channels int) (*Image, error) {
	if err := check_dims(width, height, channels); err != nil {
		return nil, err
	}
	if expected := width * height * channels; expected != len(p) {
		return nil, fmt.Errorf("%w: the image width, height and channels dont match the size of the specified pixel data: width=%d height=%d channels=%d sz=%d != %d",
			ErrInvalidArgument, width, height, channels, len(p), expected)
	}
	return &Image{Pix: p, Width: width, Height: height, Channels: channels}, nil
}

// Bounds returns the image rectangle, anchored at the origin.
func (p *Image) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// Stride is the number of samples between vertically adjacent pixels.
func (p *Image) Stride() int { return p.Width * p.Channels }

// NumPixels is Width*Height.
func (p *Image) NumPixels() int { return p.Width * p.Height }

// HasAlpha reports whether the last channel is an alpha channel.
func (p *Image) HasAlpha() bool { return p.Channels == 4 }

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y*p.Width + x) * p.Channels
}

// At returns channel c of the pixel at (x, y). Out of bounds reads yield 0.
func (p *Image) At(x, y, c int) float32 {
	if !(image.Point{x, y}.In(p.Bounds())) || c < 0 || c >= p.Channels {
		return 0
	}
	return p.Pix[p.PixOffset(x, y)+c]
}

// Set stores v in channel c of the pixel at (x, y). Out of bounds writes are
// ignored.
func (p *Image) Set(x, y, c int, v float32) {
	if !(image.Point{x, y}.In(p.Bounds())) || c < 0 || c >= p.Channels {
		return
	}
	p.Pix[p.PixOffset(x, y)+c] = v
}

// Pixel returns the samples of the pixel at (x, y). The returned slice shares
// memory with the image.
func (p *Image) Pixel(x, y int) []float32 {
	i := p.PixOffset(x, y)
	return p.Pix[i : i+p.Channels : i+p.Channels] // Small cap improves performance, see https://golang.org/issue/27857
}

// Row returns the samples of row y. The returned slice shares memory with the
// image.
func (p *Image) Row(y int) []float32 {
	s := p.Stride()
	return p.Pix[y*s : (y+1)*s : (y+1)*s]
}

// Clone returns a deep copy of the image.
func (p *Image) Clone() *Image {
	ans := *p
	ans.Pix = make([]float32, len(p.Pix))
	copy(ans.Pix, p.Pix)
	return &ans
}

// SameShape reports whether o has the same width, height and channel count.
func (p *Image) SameShape(o *Image) bool {
	return p.Width == o.Width && p.Height == o.Height && p.Channels == o.Channels
}

// WithChannels returns a copy of the image with exactly n channels. Extra
// channels are dropped, missing ones are filled with fill.
func (p *Image) WithChannels(n int, fill float32) *Image {
	if n == p.Channels {
		return p.Clone()
	}
	ans := &Image{Pix: make([]float32, p.Width*p.Height*n), Width: p.Width, Height: p.Height, Channels: n}
	common := min(n, p.Channels)
	for i := range p.Width * p.Height {
		src := p.Pix[i*p.Channels : i*p.Channels+common]
		dst := ans.Pix[i*n : (i+1)*n]
		copy(dst, src)
		for c := common; c < n; c++ {
			dst[c] = fill
		}
	}
	return ans
}

// CountNonFinite returns the number of NaN or infinite samples.
func (p *Image) CountNonFinite() (ans int) {
	for _, v := range p.Pix {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			ans++
		}
	}
	return
}

func (p *Image) String() string {
	return fmt.Sprintf("Image{%dx%dx%d}", p.Height, p.Width, p.Channels)
}
