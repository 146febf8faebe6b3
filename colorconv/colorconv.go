package colorconv

import (
	"math"
)

// This package converts between the sRGB encoded and linear light
// representations of color values, and between straight and premultiplied
// alpha.
//
// Notes:
//   - The transfer functions are the piecewise IEC 61966-2-1 curves. They are
//     applied exactly as written, so negative inputs fall into the linear
//     segment. Callers that need non-negative results should clamp first.
//   - Alpha is always linear and is never passed through a transfer function.

const (
	// SRGBThreshold is the encoded value at which the sRGB decoding curve
	// switches from its linear segment to the power segment.
	SRGBThreshold = 0.04045
	// LinearThreshold is the linear value at which the sRGB encoding curve
	// switches from its linear segment to the power segment.
	LinearThreshold = 0.0031308
)

// SRGBToLinear converts an sRGB encoded component to linear light.
func SRGBToLinear(x float32) float32 {
	if x > SRGBThreshold {
		return float32(math.Pow((float64(x)+0.055)/1.055, 2.4))
	}
	return x / 12.92
}

// LinearToSRGB converts a linear light component to its sRGB encoding.
func LinearToSRGB(x float32) float32 {
	if x > LinearThreshold {
		return float32(1.055*math.Pow(float64(x), 1.0/2.4) - 0.055)
	}
	return 12.92 * x
}

// SRGBToLinearSlice converts every value in s in place.
func SRGBToLinearSlice(s []float32) {
	for i, x := range s {
		s[i] = SRGBToLinear(x)
	}
}

// LinearToSRGBSlice converts every value in s in place.
func LinearToSRGBSlice(s []float32) {
	for i, x := range s {
		s[i] = LinearToSRGB(x)
	}
}

// Gamma applies a plain power law encoding, x^(1/gamma).
func Gamma(x, gamma float32) float32 {
	return float32(math.Pow(float64(x), 1.0/float64(gamma)))
}

// PremultiplyRow multiplies the color channels of every pixel in row, which
// holds interleaved four channel RGBA pixels, by that pixel's alpha.
func PremultiplyRow(row []float32) {
	for len(row) >= 4 {
		p := row[0:4:4]
		a := p[3]
		p[0] *= a
		p[1] *= a
		p[2] *= a
		row = row[4:]
	}
}

// UnpremultiplyRow divides the color channels of every pixel in row, which
// holds interleaved four channel RGBA pixels, by that pixel's alpha. Pixels
// with zero alpha get zero color.
func UnpremultiplyRow(row []float32) {
	for len(row) >= 4 {
		p := row[0:4:4]
		if a := p[3]; a != 0 {
			p[0] /= a
			p[1] /= a
			p[2] /= a
		} else {
			p[0], p[1], p[2] = 0, 0, 0
		}
		row = row[4:]
	}
}

// Clamp01 clamps x to [0,1]. NaN maps to 0.
func Clamp01(x float32) float32 {
	if !(x > 0) {
		return 0
	}
	return min(x, 1)
}

// To8Bit clamps x to [0,1] and quantizes it to [0,255] rounding to nearest.
func To8Bit(x float32) uint8 {
	return uint8(Clamp01(x)*255 + 0.5)
}
