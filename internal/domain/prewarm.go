package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PrewarmVariant is one transform preset to build ahead of demand.
// Fields mirror the transform query parameters; zero values mean
// "not requested". Deep validation happens in the pipeline validator,
// which sees the same raw values a live request would carry.
type PrewarmVariant struct {
	Width      int    `json:"w,omitempty"`
	Height     int    `json:"h,omitempty"`
	Fit        string `json:"fit,omitempty"`
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"q,omitempty"`
	Background string `json:"bg,omitempty"`
	Crop       string `json:"crop,omitempty"`
}

// QueryValues renders the variant as transform query parameters.
func (v PrewarmVariant) QueryValues(bucket, path string) url.Values {
	values := url.Values{}
	if bucket != "" {
		values.Set("bucket", bucket)
	}
	values.Set("path", path)
	if v.Width > 0 {
		values.Set("w", strconv.Itoa(v.Width))
	}
	if v.Height > 0 {
		values.Set("h", strconv.Itoa(v.Height))
	}
	if v.Fit != "" {
		values.Set("fit", v.Fit)
	}
	if v.Format != "" {
		values.Set("format", v.Format)
	}
	if v.Quality > 0 {
		values.Set("q", strconv.Itoa(v.Quality))
	}
	if v.Background != "" {
		values.Set("bg", v.Background)
	}
	if v.Crop != "" {
		values.Set("crop", v.Crop)
	}
	return values
}

type PrewarmRequest struct {
	Bucket     string           `json:"bucket,omitempty"`
	WebhookURL string           `json:"webhook_url,omitempty"`
	Path       string           `json:"path"`
	Variants   []PrewarmVariant `json:"variants"`
}

func (r PrewarmRequest) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("path is required")
	}
	if len(r.Variants) == 0 {
		return errors.New("variants must contain at least one entry")
	}
	for i, v := range r.Variants {
		if v.Width < 0 || v.Height < 0 || v.Quality < 0 {
			return fmt.Errorf("variants[%d]: dimensions and quality must be positive", i)
		}
	}
	return nil
}
