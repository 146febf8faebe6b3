package imgdiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/kovidgoyal/imgdiff/colorconv"
)

var _ = fmt.Print

func write_png(t *testing.T, path string, img image.Image) {
	var b bytes.Buffer
	require.NoError(t, png.Encode(&b, img))
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
}

func read_png(t *testing.T, path string) *image.NRGBA {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return to_nrgba(img)
}

func sample_nrgba() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	alphas := []uint8{255, 128, 64, 0}
	for y := range 3 {
		for x := range 4 {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 60), uint8(y * 100), uint8(17 * (x + y)), alphas[x]})
		}
	}
	return img
}

func TestFormatFromFilename(t *testing.T) {
	testCases := []struct {
		name string
		want Format
	}{
		{"a.jpg", JPEG},
		{"a.JPEG", JPEG},
		{"dir.x/a.png", PNG},
		{"a.tif", TIFF},
		{"a.webp", WEBP},
		{"a.exr", EXR},
		{"a.bin", BIN},
	}
	for _, tc := range testCases {
		f, err := FormatFromFilename(tc.name)
		require.NoError(t, err)
		require.Equal(t, tc.want, f, tc.name)
	}
	_, err := FormatFromFilename("a.xyz")
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
	_, err = FormatFromFilename("noext")
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestReadPNGIsLinearPremultiplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	src := sample_nrgba()
	write_png(t, path, src)
	img, err := ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, 4, img.Channels)
	require.Equal(t, 4, img.Width)
	require.Equal(t, 3, img.Height)
	for y := range 3 {
		for x := range 4 {
			c := src.NRGBAAt(x, y)
			a := float32(c.A) / 255
			want := []float32{
				colorconv.SRGBToLinear(float32(c.R)/255) * a,
				colorconv.SRGBToLinear(float32(c.G)/255) * a,
				colorconv.SRGBToLinear(float32(c.B)/255) * a,
				a,
			}
			if diff := cmp.Diff(want, img.Pixel(x, y), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
				t.Fatalf("pixel (%d, %d) mismatch (-want +got):\n%s", x, y, diff)
			}
		}
	}
}

func TestPNGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := sample_nrgba()
	write_png(t, filepath.Join(dir, "in.png"), src)
	img, err := ReadImage(filepath.Join(dir, "in.png"))
	require.NoError(t, err)
	require.NoError(t, WriteImage(filepath.Join(dir, "out.png"), img))
	back := read_png(t, filepath.Join(dir, "out.png"))
	for y := range 3 {
		for x := range 4 {
			want, got := src.NRGBAAt(x, y), back.NRGBAAt(x, y)
			if want.A == 0 {
				// color is undefined without coverage and comes back as zero
				want.R, want.G, want.B = 0, 0, 0
			}
			for i, pair := range [][2]uint8{{want.R, got.R}, {want.G, got.G}, {want.B, got.B}, {want.A, got.A}} {
				require.InDelta(t, pair[0], pair[1], 1, "pixel (%d, %d) channel %d: %v != %v", x, y, i, want, got)
			}
		}
	}
}

func TestReadUnrecognisedExtension(t *testing.T) {
	dir := t.TempDir()
	src := sample_nrgba()
	write_png(t, filepath.Join(dir, "a.png"), src)
	want, err := ReadImage(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	for _, name := range []string{"a.ppmx", "noext", "a.PNG.bak"} {
		path := filepath.Join(dir, name)
		write_png(t, path, src)
		img, err := ReadImage(path)
		require.NoError(t, err, name)
		require.Equal(t, want.Pix, img.Pix, name)
	}

	// JPEG content is RGB only when the extension says so
	rgb, err := NewImage(4, 4, 3)
	require.NoError(t, err)
	require.NoError(t, WriteImage(filepath.Join(dir, "a.jpg"), rgb))
	data, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jpeg.data"), data, 0o644))
	img, err := ReadImage(filepath.Join(dir, "jpeg.data"))
	require.NoError(t, err)
	require.Equal(t, 4, img.Channels)
	require.Equal(t, float32(1), img.At(3, 3, 3))

	_, err = NewCodec().Decode(data, UNKNOWN)
	require.NoError(t, err)
}

// jpeg_sampling_factors returns the packed horizontal/vertical sampling
// factor byte of every component in the frame header of a JPEG stream.
func jpeg_sampling_factors(t *testing.T, data []byte) []byte {
	require.Equal(t, []byte{0xff, 0xd8}, data[:2])
	pos := 2
	for pos+4 <= len(data) {
		require.Equal(t, byte(0xff), data[pos], "no marker at offset %d", pos)
		marker := data[pos+1]
		if marker == 0xff {
			pos++
			continue
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		seg := data[pos+4 : pos+2+length]
		switch marker {
		case 0xc0, 0xc1, 0xc2:
			n := int(seg[5])
			ans := make([]byte, n)
			for i := range n {
				ans[i] = seg[6+3*i+1]
			}
			return ans
		case 0xda:
			t.Fatal("reached scan data before the frame header")
		}
		pos += 2 + length
	}
	t.Fatal("no frame header in JPEG stream")
	return nil
}

func TestJPEGHasNoChromaSubsampling(t *testing.T) {
	img, err := NewImage(16, 16, 3)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = float32(i%7) / 7
	}
	var b bytes.Buffer
	require.NoError(t, NewCodec().Encode(&b, img, JPEG, Quality(90)))
	require.Equal(t, []byte{0x11, 0x11, 0x11}, jpeg_sampling_factors(t, b.Bytes()))
}

func TestJPEGIsRGB(t *testing.T) {
	dir := t.TempDir()
	img, err := NewImage(8, 8, 4)
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], []float32{0.2, 0.2, 0.2, 1})
	}
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, WriteImage(path, img, Quality(100)))
	back, err := ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, 3, back.Channels)
	for _, v := range back.Pix {
		require.InDelta(t, 0.2, v, 0.01)
	}
	// a PNG named .jpg is still read as RGB
	write_png(t, filepath.Join(dir, "b.jpg"), sample_nrgba())
	back, err = ReadImage(filepath.Join(dir, "b.jpg"))
	require.NoError(t, err)
	require.Equal(t, 3, back.Channels)
	require.InDelta(t, colorconv.From8Bit(60), back.At(1, 0, 0), 1e-6)
	// extension matching ignores case and accepts .jpeg
	for _, name := range []string{"c.JPG", "d.jpeg", "e.JPEG"} {
		require.NoError(t, WriteImage(filepath.Join(dir, name), img))
		back, err = ReadImage(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, 3, back.Channels, name)
	}
}

func TestOtherRasterFormats(t *testing.T) {
	dir := t.TempDir()
	src := sample_nrgba()
	write_png(t, filepath.Join(dir, "in.png"), src)
	img, err := ReadImage(filepath.Join(dir, "in.png"))
	require.NoError(t, err)
	for _, ext := range []string{"tiff", "bmp", "webp"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "out."+ext)
			opts := []EncodeOption{}
			if ext == "webp" {
				opts = append(opts, WEBPLossless(true))
			}
			require.NoError(t, WriteImage(path, img, opts...))
			back, err := ReadImage(path)
			require.NoError(t, err)
			require.True(t, img.SameShape(back), "%s != %s", img, back)
			// opaque pixels survive a lossless format exactly
			for y := range 3 {
				require.Equal(t, img.Pixel(0, y), back.Pixel(0, y))
			}
		})
	}
	path := filepath.Join(dir, "out.gif")
	require.NoError(t, WriteImage(path, img))
	back, err := ReadImage(path)
	require.NoError(t, err)
	require.True(t, img.SameShape(back))
}

func TestSixteenBitPNG(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 2, 1))
	src.SetNRGBA64(0, 0, color.NRGBA64{0xffff, 0x8000, 0, 0xffff})
	src.SetNRGBA64(1, 0, color.NRGBA64{0x1234, 0x5678, 0x9abc, 0x8000})
	path := filepath.Join(t.TempDir(), "a.png")
	write_png(t, path, src)
	img, err := ReadImage(path)
	require.NoError(t, err)
	require.InDelta(t, 1, img.At(0, 0, 0), 1e-6)
	require.InDelta(t, colorconv.SRGBToLinear(float32(0x8000)/65535), img.At(0, 0, 1), 1e-6)
	a := float32(0x8000) / 65535
	require.InDelta(t, a, img.At(1, 0, 3), 1e-6)
	require.InDelta(t, colorconv.SRGBToLinear(float32(0x9abc)/65535)*a, img.At(1, 0, 2), 1e-6)
}

func gradient(t *testing.T, w, h, c int) *Image {
	img, err := NewImage(w, h, c)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = float32(i%13) * 0.125
	}
	return img
}

func TestBinFile(t *testing.T) {
	dir := t.TempDir()
	img := gradient(t, 5, 3, 4)
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, WriteImage(path, img))
	back, err := ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)

	rgb := gradient(t, 2, 2, 3)
	require.NoError(t, WriteImage(path, rgb))
	back, err = ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, 4, back.Channels)
	require.Equal(t, float32(1), back.At(1, 1, 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))
	_, err = ReadImage(path)
	require.True(t, errors.Is(err, ErrFormat), "unexpected error: %v", err)
}

func TestEXRFile(t *testing.T) {
	dir := t.TempDir()
	img := gradient(t, 7, 4, 4)
	img.Pix[3] = 42
	img.Pix[5] = -3
	path := filepath.Join(dir, "a.exr")
	require.NoError(t, WriteImage(path, img))
	back, err := ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)

	// gamma does not apply to linear formats
	require.NoError(t, WriteImageGamma(path, img, 2.2))
	back, err = ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)

	var b bytes.Buffer
	require.NoError(t, NewCodec().Encode(&b, img, EXR))
	back, err = NewCodec().Decode(b.Bytes(), EXR)
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)
}

func TestWriteImageGamma(t *testing.T) {
	dir := t.TempDir()
	img, err := NewImage(1, 1, 4)
	require.NoError(t, err)
	copy(img.Pix, []float32{0.25, 1, 0, 0.25})
	path := filepath.Join(dir, "a.png")
	require.NoError(t, WriteImageGamma(path, img, 2))
	c := read_png(t, path).NRGBAAt(0, 0)
	// every channel, alpha included, is raised to 1/gamma
	require.Equal(t, color.NRGBA{128, 255, 0, 128}, c)

	err = WriteImageGamma(filepath.Join(dir, "a.bin"), img, 2)
	require.True(t, errors.Is(err, ErrUnsupportedFormat), "unexpected error: %v", err)
	err = WriteImageGamma(path, img, 0)
	require.True(t, errors.Is(err, ErrInvalidArgument), "unexpected error: %v", err)
}

func TestQuantize(t *testing.T) {
	img, err := NewImage(3, 1, 4)
	require.NoError(t, err)
	copy(img.Pix, []float32{
		0.5, 0.5, 0.5, 0.5, // premultiplied linear 1.0 at half coverage
		0.3, 0.3, 0.3, 0, // no coverage
		float32(math.NaN()), 2, -1, 1,
	})
	q, err := quantize(img, 0, false)
	require.NoError(t, err)
	require.Equal(t, []uint8{255, 255, 255, 128, 0, 0, 0, 0, 0, 255, 0, 255}, q.Pix)
	q, err = quantize(img, 0, true)
	require.NoError(t, err)
	require.Equal(t, uint8(255), q.Pix[7])

	grey, err := NewImage(1, 1, 1)
	require.NoError(t, err)
	grey.Pix[0] = 1
	q, err = quantize(grey, 0, false)
	require.NoError(t, err)
	require.Equal(t, []uint8{255, 255, 255, 255}, q.Pix)

	two, err := NewImage(1, 1, 2)
	require.NoError(t, err)
	_, err = quantize(two, 0, false)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	img := gradient(t, 2, 2, 3)

	_, err := ReadImage(filepath.Join(dir, "missing.png"))
	require.True(t, errors.Is(err, ErrIO), "unexpected error: %v", err)

	err = WriteImage(filepath.Join(dir, "no", "such", "dir.png"), img)
	require.True(t, errors.Is(err, ErrIO), "unexpected error: %v", err)

	err = WriteImage(filepath.Join(dir, "a.xyz"), img)
	require.True(t, errors.Is(err, ErrUnsupportedFormat), "unexpected error: %v", err)
	// unrecognised extensions are only rejected when writing
	_, err = ReadImage(filepath.Join(dir, "a.xyz"))
	require.True(t, errors.Is(err, ErrIO), "unexpected error: %v", err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xyz"), []byte("this is not an image"), 0o644))
	_, err = ReadImage(filepath.Join(dir, "a.xyz"))
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not an image"), 0o644))
	_, err = ReadImage(garbage)
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)

	garbage = filepath.Join(dir, "garbage.exr")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not an image"), 0o644))
	_, err = ReadImage(garbage)
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)
}

func TestMaxImagePixels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	write_png(t, path, sample_nrgba())
	_, err := NewCodec(MaxImagePixels(11)).ReadImage(path)
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)
	_, err = NewCodec(MaxImagePixels(12)).ReadImage(path)
	require.NoError(t, err)
	_, err = NewCodec(MaxImagePixels(0)).ReadImage(path)
	require.NoError(t, err)

	bin := filepath.Join(dir, "a.bin")
	require.NoError(t, WriteImage(bin, gradient(t, 4, 4, 4)))
	_, err = NewCodec(MaxImagePixels(15)).ReadImage(bin)
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)

	exr := filepath.Join(dir, "a.exr")
	require.NoError(t, WriteImage(exr, gradient(t, 4, 4, 4)))
	_, err = NewCodec(MaxImagePixels(15)).ReadImage(exr)
	require.True(t, errors.Is(err, ErrDecode), "unexpected error: %v", err)
}

type failingWriter struct {
	bytes.Buffer
	close_err error
}

func (f *failingWriter) Close() error { return f.close_err }

type memFS struct {
	files map[string]*failingWriter
}

func (m *memFS) Create(name string) (io.WriteCloser, error) {
	f := &failingWriter{close_err: errors.New("disk full")}
	m.files[name] = f
	return f, nil
}

func (m *memFS) Open(name string) (io.ReadCloser, error) {
	if f, ok := m.files[name]; ok {
		return io.NopCloser(bytes.NewReader(f.Bytes())), nil
	}
	return nil, os.ErrNotExist
}

func TestCloseErrorIsIOError(t *testing.T) {
	orig := fs
	t.Cleanup(func() { fs = orig })
	m := &memFS{files: map[string]*failingWriter{}}
	fs = m
	img := gradient(t, 2, 2, 4)
	err := WriteImage("x.bin", img)
	require.True(t, errors.Is(err, ErrIO), "unexpected error: %v", err)
	require.True(t, errors.Is(err, m.files["x.bin"].close_err))
	// the data made it to the writer so it can still be read back
	back, err := ReadImage("x.bin")
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)
	// a non-seekable writer still gets a complete OpenEXR file
	_ = WriteImage("x.exr", img)
	back, err = ReadImage("x.exr")
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)
}

func TestBinHeaderIsLittleEndian(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, NewCodec().Encode(&b, gradient(t, 3, 2, 4), BIN))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(b.Bytes()[0:]))
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(b.Bytes()[4:]))
}

func TestJPEGDecodeWithoutExtension(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	var b bytes.Buffer
	require.NoError(t, jpeg.Encode(&b, src, &jpeg.Options{Quality: 100}))
	img, err := NewCodec().Decode(b.Bytes(), JPEG)
	require.NoError(t, err)
	require.Equal(t, 3, img.Channels)
	require.InDelta(t, colorconv.From8Bit(200), img.At(2, 2, 1), 0.005)
}
