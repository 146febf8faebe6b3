package types

import (
	"fmt"
)

var _ = fmt.Print

// Format is an image file format.
type Format int

// Image file formats.
const (
	UNKNOWN Format = iota
	JPEG
	PNG
	GIF
	TIFF
	WEBP
	BMP
	EXR
	BIN
)

// FormatExts maps lower case file extensions, without the leading dot, to
// the formats they select.
var FormatExts = map[string]Format{
	"jpg":  JPEG,
	"jpeg": JPEG,
	"png":  PNG,
	"gif":  GIF,
	"tif":  TIFF,
	"tiff": TIFF,
	"webp": WEBP,
	"bmp":  BMP,
	"exr":  EXR,
	"bin":  BIN,
}

var formatNames = map[Format]string{
	JPEG: "JPEG",
	PNG:  "PNG",
	GIF:  "GIF",
	TIFF: "TIFF",
	WEBP: "WEBP",
	BMP:  "BMP",
	EXR:  "EXR",
	BIN:  "BIN",
}

func (f Format) String() string {
	return formatNames[f]
}

// Kind is the family of container a Format belongs to. It decides how pixel
// values are transformed on the way in and out of the canonical
// representation.
type Kind int

const (
	// StandardRaster formats store 8-bit sRGB encoded values with straight alpha.
	StandardRaster Kind = iota
	// HDR formats store linear floating point values.
	HDR
	// RawBinary is the headered half-float RGBA dump, stored linear.
	RawBinary
)

func (k Kind) String() string {
	switch k {
	case StandardRaster:
		return "raster"
	case HDR:
		return "hdr"
	case RawBinary:
		return "raw"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kind returns the container family of f. Unrecognised formats are treated
// as StandardRaster.
func (f Format) Kind() Kind {
	switch f {
	case EXR:
		return HDR
	case BIN:
		return RawBinary
	}
	return StandardRaster
}

// DropsAlpha reports whether images of this format are always read and written
// as three channel RGB.
func (f Format) DropsAlpha() bool {
	return f == JPEG
}
