package colorconv

import (
	"sync"
)

var encoded8ToLinearLUT = sync.OnceValue(func() (ans [256]float32) {
	for i := range ans {
		ans[i] = SRGBToLinear(float32(i) / 255)
	}
	return
})

var normalised8LUT = sync.OnceValue(func() (ans [256]float32) {
	for i := range ans {
		ans[i] = float32(i) / 255
	}
	return
})

// From8Bit converts an 8-bit sRGB encoded value to a normalised linear value
// between 0.0 and 1.0.
//
// This implementation uses a look-up table built with SRGBToLinear so it is
// exact.
func From8Bit(v uint8) float32 {
	return encoded8ToLinearLUT()[v]
}

// Normalised8Bit maps an 8-bit value to [0,1] without any transfer function.
func Normalised8Bit(v uint8) float32 {
	return normalised8LUT()[v]
}
