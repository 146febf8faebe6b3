package imgdiff

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/gen2brain/jpegli"
	"github.com/kettek/apng"
	"github.com/kovidgoyal/go-parallel"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kovidgoyal/imgdiff/colorconv"
)

var _ = fmt.Print

func is_high_depth(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		return true
	}
	return false
}

// decode_image decodes the first image in data. The container is detected
// from content, not from the file extension. PNG goes through the APNG
// decoder so that animated PNGs yield their default image.
func (c *Codec) decode_image(data []byte) (img image.Image, format_name string, err error) {
	cfg, format_name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if err = c.check_size(cfg.Width, cfg.Height); err != nil {
		return nil, format_name, err
	}
	switch format_name {
	case "png", "apng":
		a, err := apng.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, format_name, err
		}
		if len(a.Frames) > 1 {
			Logger().Debug("using the default image of an animated PNG", "frames", len(a.Frames))
		}
		img = a.Frames[0].Image
	default:
		if img, _, err = image.Decode(bytes.NewReader(data)); err != nil {
			return nil, format_name, err
		}
	}
	return
}

func (c *Codec) decode_raster(data []byte, format Format) (*Image, error) {
	img, format_name, err := c.decode_image(data)
	if err != nil {
		if is_sentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	nc := 4
	if format.DropsAlpha() {
		nc = 3
	}
	var ans *Image
	if is_high_depth(img) {
		ans, err = linearize16(to_nrgba64(img), nc)
	} else {
		ans, err = linearize8(to_nrgba(img), nc)
	}
	if err != nil {
		return nil, err
	}
	if c.cfg.autoOrientation {
		if o := exif_orientation(data); o != orientationUnspecified {
			ans = fixOrientation(ans, o)
		}
	}
	Logger().Debug("decoded raster", "format", format, "container", format_name, "high_depth", is_high_depth(img))
	return ans, nil
}

func to_nrgba(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	ans := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(ans, ans.Rect, img, b.Min, draw.Src)
	return ans
}

func to_nrgba64(img image.Image) *image.NRGBA64 {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA64); ok && b.Min == (image.Point{}) {
		return n
	}
	ans := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(ans, ans.Rect, img, b.Min, draw.Src)
	return ans
}

// linearize8 converts straight alpha sRGB pixels to linear premultiplied
// values with nc channels, 3 drops alpha.
func linearize8(src *image.NRGBA, nc int) (*Image, error) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	ans, err := NewImage(w, h, nc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			s := src.Pix[y*src.Stride : y*src.Stride+4*w]
			d := ans.Row(y)
			for x := range w {
				p := s[4*x : 4*x+4 : 4*x+4]
				o := d[x*nc : x*nc+nc : x*nc+nc]
				o[0], o[1], o[2] = colorconv.From8Bit(p[0]), colorconv.From8Bit(p[1]), colorconv.From8Bit(p[2])
				if nc == 4 {
					o[3] = colorconv.Normalised8Bit(p[3])
				}
			}
			if nc == 4 {
				colorconv.PremultiplyRow(d)
			}
		}
	}, 0, h)
	return ans, err
}

func linearize16(src *image.NRGBA64, nc int) (*Image, error) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	ans, err := NewImage(w, h, nc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	v16 := func(p []uint8) float32 { return float32(uint16(p[0])<<8|uint16(p[1])) / 65535 }
	err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			s := src.Pix[y*src.Stride : y*src.Stride+8*w]
			d := ans.Row(y)
			for x := range w {
				p := s[8*x : 8*x+8 : 8*x+8]
				o := d[x*nc : x*nc+nc : x*nc+nc]
				o[0], o[1], o[2] = colorconv.SRGBToLinear(v16(p[0:])), colorconv.SRGBToLinear(v16(p[2:])), colorconv.SRGBToLinear(v16(p[4:]))
				if nc == 4 {
					o[3] = v16(p[6:])
				}
			}
			if nc == 4 {
				colorconv.PremultiplyRow(d)
			}
		}
	}, 0, h)
	return ans, err
}

// quantize converts a canonical image to 8-bit straight alpha pixels. With
// a gamma of zero the sRGB curve is used: four channel images are
// un-premultiplied first and alpha is kept linear. Otherwise x^(1/gamma) is
// applied to every channel, alpha included, with no un-premultiplication.
// Single channel images become grey. When opaque is true alpha is discarded.
func quantize(img *Image, gamma float32, opaque bool) (*image.NRGBA, error) {
	nc := img.Channels
	if nc != 1 && nc != 3 && nc != 4 {
		return nil, fmt.Errorf("%w: cannot write an image with %d channels to a raster format", ErrInvalidArgument, nc)
	}
	is_srgb := gamma == 0
	tf := colorconv.LinearToSRGB
	if !is_srgb {
		tf = func(x float32) float32 { return colorconv.Gamma(x, gamma) }
	}
	w, h := img.Width, img.Height
	ans := image.NewNRGBA(image.Rect(0, 0, w, h))
	err := parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		var row []float32
		for y := start; y < limit; y++ {
			src := img.Row(y)
			if nc == 4 && is_srgb {
				row = append(row[:0], src...)
				colorconv.UnpremultiplyRow(row)
				src = row
			}
			d := ans.Pix[y*ans.Stride : y*ans.Stride+4*w]
			for x := range w {
				p := src[x*nc : x*nc+nc : x*nc+nc]
				o := d[4*x : 4*x+4 : 4*x+4]
				switch nc {
				case 1:
					g := colorconv.To8Bit(tf(p[0]))
					o[0], o[1], o[2], o[3] = g, g, g, 255
				default:
					o[0], o[1], o[2] = colorconv.To8Bit(tf(p[0])), colorconv.To8Bit(tf(p[1])), colorconv.To8Bit(tf(p[2]))
					o[3] = 255
					if nc == 4 && !opaque {
						if is_srgb {
							o[3] = colorconv.To8Bit(p[3])
						} else {
							o[3] = colorconv.To8Bit(tf(p[3]))
						}
					}
				}
			}
		}
	}, 0, h)
	return ans, err
}

func encode_raster(w io.Writer, img *image.NRGBA, format Format, cfg *encodeConfig) error {
	switch format {
	case JPEG:
		// quantize has made every pixel opaque so the buffer is valid RGBA
		rgba := &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
		return jpegli.Encode(w, rgba, &jpegli.EncodingOptions{
			Quality:              cfg.quality,
			ChromaSubsampling:    image.YCbCrSubsampleRatio444,
			OptimizeCoding:       true,
			AdaptiveQuantization: true,
		})

	case PNG:
		encoder := png.Encoder{CompressionLevel: cfg.pngCompressionLevel}
		return encoder.Encode(w, img)

	case GIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256})

	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})

	case BMP:
		return bmp.Encode(w, img)

	case WEBP:
		return webp.Encode(w, img, &webp.Options{Lossless: cfg.webpLossless, Quality: float32(cfg.quality), Exact: true})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
