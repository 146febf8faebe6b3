package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kovidgoyal/imgdiff"
)

var _ = fmt.Print

func main() {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	fs := flag.NewFlagSet("imgconv", flag.ExitOnError)
	quality := fs.Int("quality", 95, "quality of lossy output formats, 1-100")
	gamma := fs.Float64("gamma", 0, "encode raster output with x^(1/gamma) instead of the sRGB curve")
	max_pixels := fs.Int64("max-pixels", imgdiff.DefaultMaxImagePixels, "refuse to decode images with more pixels than this, 0 for no limit")
	auto_orient := fs.Bool("auto-orient", false, "apply the EXIF orientation of JPEG and TIFF input")
	lossless := fs.Bool("lossless", false, "write lossless WEBP")
	verbose := fs.Bool("v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: imgconv [options] input-file output-file")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(2)
	}
	if *verbose {
		imgdiff.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	input, output := fs.Arg(0), fs.Arg(1)
	c := imgdiff.NewCodec(imgdiff.MaxImagePixels(*max_pixels), imgdiff.AutoOrientation(*auto_orient))
	img, err := c.ReadImage(input)
	if err != nil {
		return
	}
	opts := []imgdiff.EncodeOption{imgdiff.Quality(*quality), imgdiff.WEBPLossless(*lossless)}
	if *gamma != 0 {
		err = c.WriteImageGamma(output, img, float32(*gamma), opts...)
	} else {
		err = c.WriteImage(output, img, opts...)
	}
	if err == nil {
		fmt.Printf("%s %s saved to: %s\n", input, img, output)
	}
}
