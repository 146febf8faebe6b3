/*
Package imgdiff reads and writes images in a single canonical representation
and compares them with error metrics.

Every decoded image is a types.Image of float32 samples holding linear light
values with premultiplied alpha, whatever the file format. Standard raster
formats (JPEG, PNG, GIF, TIFF, WEBP, BMP) are sRGB decoded, OpenEXR and the
raw half-float .bin container are passed through unchanged. Writing reverses
the conversion.

The metrics sub-package computes per pixel error maps and scalar errors (MAE,
MSE, SSIM and others) between a candidate and a reference image.
*/
package imgdiff

import "fmt"

type ImgdiffVersion struct {
	Major, Minor, Patch uint
}

func (v ImgdiffVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v ImgdiffVersion) Equal(o ImgdiffVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Patch == o.Patch
}

func (v ImgdiffVersion) After(o ImgdiffVersion) bool {
	switch {
	case v.Major != o.Major:
		return v.Major > o.Major
	case v.Minor != o.Minor:
		return v.Minor > o.Minor
	}
	return v.Patch > o.Patch
}

func (v ImgdiffVersion) Before(o ImgdiffVersion) bool {
	return !v.Equal(o) && !v.After(o)
}

var Version = ImgdiffVersion{1, 0, 0}
