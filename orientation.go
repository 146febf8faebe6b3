package imgdiff

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
	exif_tiff "github.com/rwcarlsen/goexif/tiff"
)

// orientation is an EXIF flag that specifies the transformation
// that should be applied to image to display it correctly.
type orientation int

const (
	orientationUnspecified = 0
	orientationNormal      = 1
	orientationFlipH       = 2
	orientationRotate180   = 3
	orientationFlipV       = 4
	orientationTranspose   = 5
	orientationRotate270   = 6
	orientationTransverse  = 7
	orientationRotate90    = 8
)

// exif_orientation returns the orientation stored in the EXIF metadata of
// data, which must be a JPEG or TIFF file. Missing or malformed metadata
// yields orientationUnspecified.
func exif_orientation(data []byte) orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return orientationUnspecified
	}
	orient, err := x.Get(exif.Orientation)
	if err == nil && orient != nil && orient.Format() == exif_tiff.IntVal && orient.Count > 0 {
		if v, err := orient.Int(0); err == nil && v > 0 && v < 9 {
			return orientation(v)
		}
	}
	return orientationUnspecified
}

// fixOrientation applies a transform to img corresponding to the given
// orientation flag. The result may have swapped width and height.
func fixOrientation(img *Image, o orientation) *Image {
	w, h := img.Width, img.Height
	var dw, dh int
	var src func(x, y int) (int, int)
	switch o {
	case orientationFlipH:
		src = func(x, y int) (int, int) { return w - 1 - x, y }
	case orientationRotate180:
		src = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case orientationFlipV:
		src = func(x, y int) (int, int) { return x, h - 1 - y }
	case orientationTranspose:
		src = func(x, y int) (int, int) { return y, x }
	case orientationRotate270:
		// 270 degrees counter-clockwise
		src = func(x, y int) (int, int) { return y, h - 1 - x }
	case orientationTransverse:
		src = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case orientationRotate90:
		// 90 degrees counter-clockwise
		src = func(x, y int) (int, int) { return w - 1 - y, x }
	default:
		return img
	}
	dw, dh = w, h
	if o >= orientationTranspose {
		dw, dh = h, w
	}
	ans, _ := NewImage(dw, dh, img.Channels)
	for y := range dh {
		for x := range dw {
			sx, sy := src(x, y)
			copy(ans.Pixel(x, y), img.Pixel(sx, sy))
		}
	}
	return ans
}
