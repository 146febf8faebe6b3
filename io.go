package imgdiff

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kovidgoyal/imgdiff/binfmt"
	"github.com/kovidgoyal/imgdiff/exrio"
	"github.com/kovidgoyal/imgdiff/types"
)

type fileSystem interface {
	Create(string) (io.WriteCloser, error)
	Open(string) (io.ReadCloser, error)
}

type localFS struct{}

func (localFS) Create(name string) (io.WriteCloser, error) { return os.Create(name) }
func (localFS) Open(name string) (io.ReadCloser, error)    { return os.Open(name) }

var fs fileSystem = localFS{}

type Image = types.Image

// NewImage returns a zero filled image with the specified dimensions.
func NewImage(width, height, channels int) (*Image, error) {
	return types.NewImage(width, height, channels)
}

type Format = types.Format

const (
	UNKNOWN = types.UNKNOWN
	JPEG    = types.JPEG
	PNG     = types.PNG
	GIF     = types.GIF
	TIFF    = types.TIFF
	WEBP    = types.WEBP
	BMP     = types.BMP
	EXR     = types.EXR
	BIN     = types.BIN
)

var (
	ErrDecode            = types.ErrDecode
	ErrFormat            = types.ErrFormat
	ErrIO                = types.ErrIO
	ErrInvalidArgument   = types.ErrInvalidArgument
	ErrUnsupportedFormat = types.ErrUnsupportedFormat
)

// FormatFromExtension parses image format from filename extension:
// "jpg" (or "jpeg"), "png", "gif", "tif" (or "tiff"), "webp", "bmp", "exr"
// and "bin" are supported.
func FormatFromExtension(ext string) (Format, error) {
	if f, ok := types.FormatExts[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return f, nil
	}
	return UNKNOWN, fmt.Errorf("%w: %#v", ErrUnsupportedFormat, ext)
}

// FormatFromFilename parses image format from the extension of filename.
func FormatFromFilename(filename string) (Format, error) {
	return FormatFromExtension(filepath.Ext(filename))
}

// DefaultMaxImagePixels is the largest number of pixels a raster image may
// have before decoding is refused.
const DefaultMaxImagePixels = 10_000_000_000

type decodeConfig struct {
	autoOrientation bool
	maxImagePixels  int64
}

var defaultDecodeConfig = decodeConfig{
	autoOrientation: false,
	maxImagePixels:  DefaultMaxImagePixels,
}

// DecodeOption sets an optional parameter for a Codec.
type DecodeOption func(*decodeConfig)

// AutoOrientation returns a DecodeOption that sets the auto-orientation mode.
// If auto-orientation is enabled, JPEG and TIFF images are transformed after
// decoding according to their EXIF orientation tag (if present). By default
// it is disabled, so pixels are returned in storage order.
func AutoOrientation(enabled bool) DecodeOption {
	return func(c *decodeConfig) {
		c.autoOrientation = enabled
	}
}

// MaxImagePixels returns a DecodeOption that limits the number of pixels
// (width*height) of images that will be decoded. Larger images fail with
// ErrDecode. Zero means no limit. Default is DefaultMaxImagePixels.
func MaxImagePixels(n int64) DecodeOption {
	return func(c *decodeConfig) {
		c.maxImagePixels = max(0, n)
	}
}

type encodeConfig struct {
	quality             int
	pngCompressionLevel png.CompressionLevel
	webpLossless        bool
}

var defaultEncodeConfig = encodeConfig{
	quality:             95,
	pngCompressionLevel: png.DefaultCompression,
}

// EncodeOption sets an optional parameter for the Encode and Write functions.
type EncodeOption func(*encodeConfig)

// Quality returns an EncodeOption that sets the output quality of lossy
// formats (JPEG and WEBP). Quality ranges from 1 to 100 inclusive, higher is
// better. Default is 95.
func Quality(quality int) EncodeOption {
	return func(c *encodeConfig) {
		c.quality = min(100, max(1, quality))
	}
}

// PNGCompressionLevel returns an EncodeOption that sets the compression level
// of the PNG-encoded image. Default is png.DefaultCompression.
func PNGCompressionLevel(level png.CompressionLevel) EncodeOption {
	return func(c *encodeConfig) {
		c.pngCompressionLevel = level
	}
}

// WEBPLossless returns an EncodeOption that makes WEBP output lossless.
func WEBPLossless(enabled bool) EncodeOption {
	return func(c *encodeConfig) {
		c.webpLossless = enabled
	}
}

// Codec reads and writes images in the canonical representation: float32,
// linear light, premultiplied alpha. A Codec is immutable and safe for
// concurrent use.
type Codec struct {
	cfg decodeConfig
}

// NewCodec returns a Codec with the specified options.
func NewCodec(opts ...DecodeOption) *Codec {
	cfg := defaultDecodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	return &Codec{cfg: cfg}
}

var defaultCodec = NewCodec()

func (c *Codec) check_size(width, height int) error {
	if c.cfg.maxImagePixels > 0 && int64(width)*int64(height) > c.cfg.maxImagePixels {
		return fmt.Errorf("%w: image of %dx%d pixels exceeds the limit of %d pixels", ErrDecode, width, height, c.cfg.maxImagePixels)
	}
	return nil
}

// Decode converts the encoded image in data to the canonical representation.
// format determines how pixel values are interpreted: raster formats are
// sRGB encoded with straight alpha, EXR and BIN are linear. UNKNOWN is
// decoded as a four channel raster image with the container detected from
// content.
func (c *Codec) Decode(data []byte, format Format) (img *Image, err error) {
	switch format.Kind() {
	case types.HDR:
		var w, h int
		if w, h, err = exrio.Dimensions(data); err != nil {
			return nil, err
		}
		if err = c.check_size(w, h); err != nil {
			return nil, err
		}
		img, err = exrio.Decode(data)
	case types.RawBinary:
		if img, err = binfmt.Decode(data); err == nil {
			if err = c.check_size(img.Width, img.Height); err != nil {
				return nil, err
			}
		}
	default:
		img, err = c.decode_raster(data, format)
	}
	if err == nil {
		if n := img.CountNonFinite(); n > 0 {
			Logger().Warn("decoded image has non-finite samples", "format", format, "count", n)
		}
	}
	return
}

func read_file(path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}
	return data, nil
}

// ReadImage loads the image at path, choosing the decoder from its extension.
// Files with a missing or unrecognised extension are read as raster images
// with four channels.
func (c *Codec) ReadImage(path string) (*Image, error) {
	format, err := FormatFromFilename(path)
	if err != nil {
		format = UNKNOWN
		Logger().Debug("unrecognised extension, detecting format from content", "path", path)
	}
	data, err := read_file(path)
	if err != nil {
		return nil, err
	}
	img, err := c.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	Logger().Debug("read image", "path", path, "format", format, "shape", img.String(), "bytes", len(data))
	return img, nil
}

// Encode writes img to w in the specified format. Raster formats are
// un-premultiplied, sRGB encoded and quantized to 8 bits, JPEG drops alpha.
// EXR and BIN store the values unchanged.
func (c *Codec) Encode(w io.Writer, img *Image, format Format, opts ...EncodeOption) error {
	cfg := defaultEncodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	switch format.Kind() {
	case types.HDR:
		return exrio.EncodeTo(w, img)
	case types.RawBinary:
		return binfmt.Encode(w, img)
	}
	q, err := quantize(img, 0, format.DropsAlpha())
	if err != nil {
		return err
	}
	return encode_raster(w, q, format, &cfg)
}

// EncodeGamma is Encode with a plain power law transfer function,
// x^(1/gamma), applied to every channel in place of the sRGB curve. Alpha
// is neither un-premultiplied nor exempted from the power law. HDR formats
// are written unchanged and BIN is not supported.
func (c *Codec) EncodeGamma(w io.Writer, img *Image, format Format, gamma float32, opts ...EncodeOption) error {
	switch format.Kind() {
	case types.HDR:
		return c.Encode(w, img, format, opts...)
	case types.RawBinary:
		return fmt.Errorf("%w: gamma encoding is not available for %s", ErrUnsupportedFormat, format)
	}
	if !(gamma > 0) {
		return fmt.Errorf("%w: gamma must be positive, not %v", ErrInvalidArgument, gamma)
	}
	cfg := defaultEncodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	q, err := quantize(img, gamma, format.DropsAlpha())
	if err != nil {
		return err
	}
	return encode_raster(w, q, format, &cfg)
}

func is_sentinel(err error) bool {
	for _, s := range []error{ErrDecode, ErrFormat, ErrIO, ErrInvalidArgument, ErrUnsupportedFormat} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func save(path string, encode func(io.Writer, Format) error) (err error) {
	format, err := FormatFromFilename(path)
	if err != nil {
		return err
	}
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	err = encode(file, format)
	errc := file.Close()
	if err == nil && errc != nil {
		err = errc
	}
	if err != nil && !is_sentinel(err) {
		err = fmt.Errorf("%w: writing %s: %w", ErrIO, path, err)
	}
	return
}

// WriteImage saves img to path, choosing the encoder from its extension.
func (c *Codec) WriteImage(path string, img *Image, opts ...EncodeOption) error {
	err := save(path, func(w io.Writer, f Format) error { return c.Encode(w, img, f, opts...) })
	if err == nil {
		Logger().Debug("wrote image", "path", path, "shape", img.String())
	}
	return err
}

// WriteImageGamma saves img to path using EncodeGamma.
func (c *Codec) WriteImageGamma(path string, img *Image, gamma float32, opts ...EncodeOption) error {
	err := save(path, func(w io.Writer, f Format) error { return c.EncodeGamma(w, img, f, gamma, opts...) })
	if err == nil {
		Logger().Debug("wrote image", "path", path, "shape", img.String(), "gamma", gamma)
	}
	return err
}

// ReadImage loads an image from file.
//
// Examples:
//
//	// Load an image with the default options.
//	img, err := imgdiff.ReadImage("test.png")
//
//	// Load an image applying its EXIF orientation.
//	img, err := imgdiff.ReadImage("photo.jpg", imgdiff.AutoOrientation(true))
func ReadImage(path string, opts ...DecodeOption) (*Image, error) {
	c := defaultCodec
	if len(opts) > 0 {
		c = NewCodec(opts...)
	}
	return c.ReadImage(path)
}

// WriteImage saves the image to file with the specified filename. The format
// is determined from the filename extension.
//
// Examples:
//
//	// Save the image as PNG.
//	err := imgdiff.WriteImage("out.png", img)
//
//	// Save the image as JPEG with quality 80.
//	err := imgdiff.WriteImage("out.jpg", img, imgdiff.Quality(80))
func WriteImage(path string, img *Image, opts ...EncodeOption) error {
	return defaultCodec.WriteImage(path, img, opts...)
}

// WriteImageGamma saves the image to file encoded with a power law of
// 1/gamma instead of the sRGB curve. See Codec.EncodeGamma.
func WriteImageGamma(path string, img *Image, gamma float32, opts ...EncodeOption) error {
	return defaultCodec.WriteImageGamma(path, img, gamma, opts...)
}
