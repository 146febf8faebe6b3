// Package exrio adapts OpenEXR files to and from the canonical float image.
// Pixel values are passed through untouched: OpenEXR stores linear light and
// so does types.Image.
package exrio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/kovidgoyal/imgdiff/types"
)

var _ = fmt.Print

// The channel names used for each supported channel count when writing.
var channel_names = map[int][]string{
	1: {"Y"},
	3: {"R", "G", "B"},
	4: {"R", "G", "B", "A"},
}

type layout struct {
	names    []string // source channel per output channel
	channels int
}

func find_channel(cl *exr.ChannelList, names ...string) string {
	for _, n := range names {
		if cl.Get(n) != nil {
			return n
		}
	}
	return ""
}

func layout_for(cl *exr.ChannelList) (layout, error) {
	r := find_channel(cl, "R", "r", "red", "Red")
	g := find_channel(cl, "G", "g", "green", "Green")
	b := find_channel(cl, "B", "b", "blue", "Blue")
	a := find_channel(cl, "A", "a", "alpha", "Alpha")
	switch {
	case r != "" && g != "" && b != "":
		if a != "" {
			return layout{[]string{r, g, b, a}, 4}, nil
		}
		return layout{[]string{r, g, b}, 3}, nil
	}
	if y := find_channel(cl, "Y", "y"); y != "" {
		if a != "" {
			// grey with alpha is widened to RGBA since two channel images
			// are not representable
			return layout{[]string{y, y, y, a}, 4}, nil
		}
		return layout{[]string{y}, 1}, nil
	}
	return layout{}, fmt.Errorf("%w: OpenEXR file has no RGB or luminance channels, found: %v", types.ErrDecode, cl.Names())
}

// Dimensions returns the size of the data window of the first part of the
// OpenEXR file in data without decoding any pixels.
func Dimensions(data []byte) (width, height int, err error) {
	f, err := exr.OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", types.ErrDecode, err)
	}
	defer f.Close()
	h := f.Header(0)
	if h == nil {
		return 0, 0, fmt.Errorf("%w: OpenEXR file has no header", types.ErrDecode)
	}
	dw := h.DataWindow()
	return int(dw.Width()), int(dw.Height()), nil
}

// Decode parses a complete OpenEXR file held in data. Only the first part of
// multi-part files is read. Chroma subsampled channels are not supported.
func Decode(data []byte) (img *types.Image, err error) {
	f, err := exr.OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
	}
	defer f.Close()
	h := f.Header(0)
	if h == nil {
		return nil, fmt.Errorf("%w: OpenEXR file has no header", types.ErrDecode)
	}
	cl := h.Channels()
	if cl == nil {
		return nil, fmt.Errorf("%w: OpenEXR file has no channel list", types.ErrDecode)
	}
	l, err := layout_for(cl)
	if err != nil {
		return nil, err
	}
	dw := h.DataWindow()
	width, height := int(dw.Width()), int(dw.Height())
	if img, err = types.NewImage(width, height, l.channels); err != nil {
		return nil, fmt.Errorf("%w: invalid data window: %w", types.ErrDecode, err)
	}
	planes := make(map[string][]float32, len(l.names))
	fb := exr.NewFrameBuffer()
	for _, name := range l.names {
		if _, found := planes[name]; found {
			continue
		}
		if ch := cl.Get(name); ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("%w: subsampled OpenEXR channel %s is not supported", types.ErrDecode, name)
		}
		p := make([]float32, width*height)
		planes[name] = p
		fb.Set(name, exr.NewSliceFromFloat32(p, width, height).WithOrigin(int(dw.Min.X), int(dw.Min.Y)))
	}
	if h.IsTiled() {
		tr, err := exr.NewTiledReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
		}
		tr.SetFrameBuffer(fb)
		if err = tr.ReadTiles(0, 0, tr.NumTilesX()-1, tr.NumTilesY()-1); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
		}
	} else {
		sr, err := exr.NewScanlineReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
		}
		sr.SetFrameBuffer(fb)
		if err = sr.ReadPixels(int(dw.Min.Y), int(dw.Max.Y)); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
		}
	}
	interleave(img, l.names, planes)
	return img, nil
}

func interleave(img *types.Image, names []string, planes map[string][]float32) {
	nc := img.Channels
	for c, name := range names {
		p := planes[name]
		for i, v := range p {
			img.Pix[i*nc+c] = v
		}
	}
}

// Encode writes img as a single part scanline OpenEXR file with 32-bit float
// channels and PIZ compression. Images with 1, 3 or 4 channels are
// supported, written as Y, RGB or RGBA respectively.
func Encode(w io.WriteSeeker, img *types.Image) error {
	names, ok := channel_names[img.Channels]
	if !ok {
		return fmt.Errorf("%w: cannot store %d channels in an OpenEXR file", types.ErrInvalidArgument, img.Channels)
	}
	h := exr.NewScanlineHeader(img.Width, img.Height)
	h.SetCompression(exr.CompressionPIZ)
	cl := exr.NewChannelList()
	fb := exr.NewFrameBuffer()
	np := img.NumPixels()
	for c, name := range names {
		cl.Add(exr.NewChannel(name, exr.PixelTypeFloat))
		p := make([]float32, np)
		for i := range p {
			p[i] = img.Pix[i*img.Channels+c]
		}
		fb.Set(name, exr.NewSliceFromFloat32(p, img.Width, img.Height))
	}
	h.SetChannels(cl)
	sw, err := exr.NewScanlineWriter(w, h)
	if err != nil {
		return err
	}
	sw.SetFrameBuffer(fb)
	if err = sw.WritePixels(0, img.Height-1); err != nil {
		sw.Close()
		return err
	}
	return sw.Close()
}

// EncodeTo is Encode for writers that cannot seek. The file is assembled in
// memory and then copied to w.
func EncodeTo(w io.Writer, img *types.Image) error {
	if ws, ok := w.(io.WriteSeeker); ok {
		return Encode(ws, img)
	}
	var buf SeekBuffer
	if err := Encode(&buf, img); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
