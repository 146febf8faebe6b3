// Package binfmt reads and writes the raw half-float image container: two
// little-endian int32 values, height then width, followed by height*width*4
// IEEE 754 half precision values in row-major RGBA order with no padding.
// Values are stored linear, no transfer function is applied.
package binfmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mrjoshuak/go-openexr/half"

	"github.com/kovidgoyal/imgdiff/types"
)

const (
	HeaderSize = 8
	Channels   = 4
	sampleSize = 2
)

// PayloadSize is the number of bytes of pixel data that follow the header of
// an image with the given dimensions.
func PayloadSize(height, width int) int {
	return height * width * Channels * sampleSize
}

// Decode parses a complete container held in data.
func Decode(data []byte) (*types.Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for the header", types.ErrFormat, len(data))
	}
	h := int32(binary.LittleEndian.Uint32(data[0:4]))
	w := int32(binary.LittleEndian.Uint32(data[4:8]))
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions height=%d width=%d", types.ErrFormat, h, w)
	}
	height, width := int(h), int(w)
	payload := data[HeaderSize:]
	if uint64(height)*uint64(width) > math.MaxInt/(Channels*sampleSize) {
		return nil, fmt.Errorf("%w: dimensions too large height=%d width=%d", types.ErrFormat, height, width)
	}
	if expected := PayloadSize(height, width); expected != len(payload) {
		return nil, fmt.Errorf("%w: height=%d width=%d needs %d bytes of pixel data, got %d", types.ErrFormat, height, width, expected, len(payload))
	}
	img, err := types.NewImage(width, height, Channels)
	if err != nil {
		return nil, err
	}
	for i := range img.Pix {
		img.Pix[i] = half.Half(binary.LittleEndian.Uint16(payload[i*sampleSize:])).Float32()
	}
	return img, nil
}

// Encode writes img to w. Images with fewer than four channels are padded with
// channels of 1.0, images with more are rejected.
func Encode(w io.Writer, img *types.Image) error {
	if img.Channels > Channels {
		return fmt.Errorf("%w: cannot store %d channels in a raw container", types.ErrInvalidArgument, img.Channels)
	}
	if img.Channels < Channels {
		img = img.WithChannels(Channels, 1)
	}
	buf := make([]byte, HeaderSize+PayloadSize(img.Height, img.Width))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(img.Height)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(img.Width)))
	payload := buf[HeaderSize:]
	for i, v := range img.Pix {
		binary.LittleEndian.PutUint16(payload[i*sampleSize:], uint16(half.FromFloat32(v)))
	}
	_, err := w.Write(buf)
	return err
}
