package imgdiff

import (
	"fmt"

	"github.com/kovidgoyal/imgdiff/metrics"
)

// Result is the value of one metric for a candidate/reference pair.
type Result struct {
	Metric metrics.Metric `json:"-"`
	Name   string         `json:"metric"`
	Value  float64        `json:"value"`
}

// Compare computes each of ms between the candidate img and the reference
// ref. The results are in the order of ms.
func Compare(img, ref *Image, ms ...metrics.Metric) (ans []Result, err error) {
	ans = make([]Result, 0, len(ms))
	for _, m := range ms {
		v, err := metrics.ComputeError(m, img, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		ans = append(ans, Result{Metric: m, Name: m.String(), Value: v})
	}
	return
}

// CompareFiles reads a candidate and a reference image and computes each of
// ms between them. Files of different formats can be compared since both
// are converted to the canonical representation first.
func (c *Codec) CompareFiles(candidate, reference string, ms ...metrics.Metric) ([]Result, error) {
	img, err := c.ReadImage(candidate)
	if err != nil {
		return nil, err
	}
	ref, err := c.ReadImage(reference)
	if err != nil {
		return nil, err
	}
	ans, err := Compare(img, ref, ms...)
	if err != nil {
		return nil, fmt.Errorf("comparing %s to %s: %w", candidate, reference, err)
	}
	Logger().Debug("compared images", "candidate", candidate, "reference", reference, "metrics", len(ms))
	return ans, nil
}

// CompareFiles is Codec.CompareFiles with the default options.
func CompareFiles(candidate, reference string, ms ...metrics.Metric) ([]Result, error) {
	return defaultCodec.CompareFiles(candidate, reference, ms...)
}
