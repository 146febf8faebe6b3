package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kovidgoyal/go-parallel"

	"github.com/kovidgoyal/imgdiff"
	"github.com/kovidgoyal/imgdiff/metrics"
)

var _ = fmt.Print

type pair struct {
	Candidate string           `json:"candidate"`
	Reference string           `json:"reference"`
	Results   []imgdiff.Result `json:"results,omitempty"`
	PSNR      *float64         `json:"psnr,omitempty"`
	Error     string           `json:"error,omitempty"`

	err error
}

func parse_metrics(spec string) (ans []metrics.Metric, err error) {
	if spec == "all" {
		return metrics.AllMetrics, nil
	}
	for _, name := range strings.Split(spec, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		m, err := metrics.ParseMetric(name)
		if err != nil {
			return nil, err
		}
		ans = append(ans, m)
	}
	if len(ans) == 0 {
		return nil, errors.New("no metrics specified")
	}
	return
}

func has_metric(ms []metrics.Metric, q metrics.Metric) bool {
	for _, m := range ms {
		if m == q {
			return true
		}
	}
	return false
}

// run computes the metrics for p and writes its error maps, if requested, as
// <prefix>-<index>-<metric>.exr
func (p *pair) run(c *imgdiff.Codec, ms []metrics.Metric, psnr bool, error_map_prefix string, idx int) {
	img, err := c.ReadImage(p.Candidate)
	if err != nil {
		p.err = err
		return
	}
	ref, err := c.ReadImage(p.Reference)
	if err != nil {
		p.err = err
		return
	}
	if p.Results, p.err = imgdiff.Compare(img, ref, ms...); p.err != nil {
		return
	}
	if psnr {
		var mse float64
		if has_metric(ms, metrics.MSE) {
			for _, r := range p.Results {
				if r.Metric == metrics.MSE {
					mse = r.Value
				}
			}
		} else if mse, p.err = metrics.ComputeError(metrics.MSE, img, ref); p.err != nil {
			return
		}
		v := metrics.MSEToPSNR(mse)
		p.PSNR = &v
	}
	if error_map_prefix != "" {
		for _, m := range ms {
			emap, err := metrics.ComputeErrorImage(m, img, ref)
			if err != nil {
				p.err = err
				return
			}
			if p.err = c.WriteImage(fmt.Sprintf("%s-%d-%s.exr", error_map_prefix, idx, m), emap); p.err != nil {
				return
			}
		}
	}
}

func main() {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	fs := flag.NewFlagSet("imgdiff", flag.ExitOnError)
	metric_spec := fs.String("metric", "MAE,MSE,SSIM", "comma separated list of metrics or all, one of: "+strings.Join(metric_names(), ", "))
	psnr := fs.Bool("psnr", false, "also print the PSNR derived from the mean squared error")
	error_map_prefix := fs.String("error-map", "", "write the error map of every metric to <prefix>-<pair>-<metric>.exr")
	max_pixels := fs.Int64("max-pixels", imgdiff.DefaultMaxImagePixels, "refuse to decode images with more pixels than this, 0 for no limit")
	auto_orient := fs.Bool("auto-orient", false, "apply the EXIF orientation of JPEG and TIFF input")
	as_json := fs.Bool("json", false, "print the results as JSON")
	verbose := fs.Bool("v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: imgdiff [options] candidate reference [candidate reference ...]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() == 0 || fs.NArg()%2 != 0 {
		fs.Usage()
		os.Exit(2)
	}
	ms, err := parse_metrics(*metric_spec)
	if err != nil {
		return
	}
	if *verbose {
		imgdiff.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	c := imgdiff.NewCodec(imgdiff.MaxImagePixels(*max_pixels), imgdiff.AutoOrientation(*auto_orient))
	args := fs.Args()
	pairs := make([]pair, len(args)/2)
	for i := range pairs {
		pairs[i].Candidate, pairs[i].Reference = args[2*i], args[2*i+1]
	}
	if err = parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for i := start; i < limit; i++ {
			pairs[i].run(c, ms, *psnr, *error_map_prefix, i)
		}
	}, 0, len(pairs)); err != nil {
		return
	}
	failed := 0
	for i := range pairs {
		p := &pairs[i]
		if p.err != nil {
			failed++
			p.Error = p.err.Error()
			if !*as_json {
				fmt.Fprintln(os.Stderr, p.err)
			}
			continue
		}
		if !*as_json {
			for _, r := range p.Results {
				fmt.Printf("%s %s %s %.9g\n", p.Candidate, p.Reference, r.Name, r.Value)
			}
			if p.PSNR != nil {
				fmt.Printf("%s %s PSNR %.9g\n", p.Candidate, p.Reference, *p.PSNR)
			}
		}
	}
	if *as_json {
		var b []byte
		if b, err = json.MarshalIndent(pairs, "", "  "); err != nil {
			return
		}
		fmt.Println(string(b))
	}
	if failed > 0 {
		err = fmt.Errorf("%d of %d comparisons failed", failed, len(pairs))
	}
}

func metric_names() []string {
	ans := make([]string, len(metrics.AllMetrics))
	for i, m := range metrics.AllMetrics {
		ans[i] = m.String()
	}
	return ans
}
