package pipeline

import (
	"errors"
	"net/url"
	"testing"

	"github.com/pixelgate/pixelgate/internal/domain"
)

var testLimits = Limits{
	MaxWidth:       2000,
	MaxHeight:      2000,
	DefaultQuality: 80,
	DefaultBucket:  "photos",
}

func parseQuery(t *testing.T, rawQuery string) (domain.TransformConfig, error) {
	t.Helper()
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("parse query %q: %v", rawQuery, err)
	}
	return ParseParams(values, testLimits)
}

func TestParseParamsDefaults(t *testing.T) {
	cfg, err := parseQuery(t, "path=products/shoe.jpg")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Path != "products/shoe.jpg" {
		t.Fatalf("expected path unchanged, got %q", cfg.Path)
	}
	if cfg.Bucket != "photos" {
		t.Fatalf("expected default bucket, got %q", cfg.Bucket)
	}
	if cfg.Width != 0 || cfg.Height != 0 {
		t.Fatalf("expected absent dimensions, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Fit != domain.FitCover {
		t.Fatalf("expected default fit cover, got %q", cfg.Fit)
	}
	if cfg.Crop != domain.CropCenter {
		t.Fatalf("expected default crop center, got %q", cfg.Crop)
	}
	if cfg.Format != "" {
		t.Fatalf("expected preserve-source format, got %q", cfg.Format)
	}
	if cfg.Quality != 80 {
		t.Fatalf("expected configured default quality, got %d", cfg.Quality)
	}
	if cfg.Background != nil {
		t.Fatalf("expected no background, got %+v", cfg.Background)
	}
	if cfg.NoCache {
		t.Fatal("expected noCache false by default")
	}
}

func TestParseParamsFullRequest(t *testing.T) {
	cfg, err := parseQuery(t, "bucket=assets&path=a.png&w=400&h=300&fit=contain&format=jpeg&q=55&bg=ff00aa&crop=top&no_cache=1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Bucket != "assets" || cfg.Width != 400 || cfg.Height != 300 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Fit != domain.FitContain || cfg.Format != domain.FormatJPEG || cfg.Crop != domain.CropTop {
		t.Fatalf("unexpected enums: %+v", cfg)
	}
	if cfg.Quality != 55 {
		t.Fatalf("expected quality 55, got %d", cfg.Quality)
	}
	if cfg.Background == nil || (*cfg.Background != domain.RGB{R: 0xff, G: 0x00, B: 0xaa}) {
		t.Fatalf("unexpected background: %+v", cfg.Background)
	}
	if !cfg.NoCache {
		t.Fatal("expected noCache true")
	}
}

func TestParseParamsPathSanitization(t *testing.T) {
	rejected := []string{
		"path=..%2F..%2Fetc%2Fpasswd",
		"path=%2Fabs%2Fpath",
		"path=",
		"path=%2F%2F%2F",
		"path=a%2F..%2Fb",
		"path=img__w%3D400.jpg",
		"path=dir__x/img.jpg",
	}
	for _, rawQuery := range rejected {
		if _, err := parseQuery(t, rawQuery); err == nil {
			t.Fatalf("expected rejection for %q", rawQuery)
		}
	}

	cfg, err := parseQuery(t, "path=nested/dir/img.png/")
	if err != nil {
		t.Fatalf("expected trailing slash to be trimmed, got %v", err)
	}
	if cfg.Path != "nested/dir/img.png" {
		t.Fatalf("expected trimmed path, got %q", cfg.Path)
	}
}

func TestParseParamsMissingPathDistinctFromInvalid(t *testing.T) {
	_, err := parseQuery(t, "w=100")
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if validationErr.Reason != "path is required" {
		t.Fatalf("expected missing-path reason, got %q", validationErr.Reason)
	}
}

func TestParseParamsIntegerBounds(t *testing.T) {
	cases := []string{
		"path=a.jpg&w=abc",
		"path=a.jpg&w=0",
		"path=a.jpg&w=-5",
		"path=a.jpg&w=2001",
		"path=a.jpg&h=9999",
		"path=a.jpg&q=0",
		"path=a.jpg&q=101",
		"path=a.jpg&q=5.5",
	}
	for _, rawQuery := range cases {
		_, err := parseQuery(t, rawQuery)
		if err == nil {
			t.Fatalf("expected rejection for %q", rawQuery)
		}
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError for %q, got %T", rawQuery, err)
		}
	}

	cfg, err := parseQuery(t, "path=a.jpg&w=2000&h=1&q=100")
	if err != nil {
		t.Fatalf("expected boundary values to pass, got %v", err)
	}
	if cfg.Width != 2000 || cfg.Height != 1 || cfg.Quality != 100 {
		t.Fatalf("unexpected boundary config: %+v", cfg)
	}
}

func TestParseParamsEnumsAreExact(t *testing.T) {
	cases := []string{
		"path=a.jpg&fit=Cover",
		"path=a.jpg&fit=stretch",
		"path=a.jpg&format=webp",
		"path=a.jpg&format=JPEG",
		"path=a.jpg&crop=middle",
		"path=a.jpg&crop=TOP",
	}
	for _, rawQuery := range cases {
		if _, err := parseQuery(t, rawQuery); err == nil {
			t.Fatalf("expected rejection for %q", rawQuery)
		}
	}
}

func TestParseParamsBackground(t *testing.T) {
	cases := []string{
		"path=a.jpg&bg=fff",
		"path=a.jpg&bg=ff00aa9",
		"path=a.jpg&bg=gg0000",
		"path=a.jpg&bg=%23ff00aa",
		"path=a.jpg&bg=00000g",
		"path=a.jpg&bg=12%20456",
		"path=a.jpg&bg=12345%20",
	}
	for _, rawQuery := range cases {
		if _, err := parseQuery(t, rawQuery); err == nil {
			t.Fatalf("expected rejection for %q", rawQuery)
		}
	}
}

func TestParseParamsNoCacheLiteral(t *testing.T) {
	for raw, want := range map[string]bool{
		"path=a.jpg&no_cache=1":    true,
		"path=a.jpg&no_cache=true": false,
		"path=a.jpg&no_cache=0":    false,
		"path=a.jpg":               false,
	} {
		cfg, err := parseQuery(t, raw)
		if err != nil {
			t.Fatalf("expected no error for %q, got %v", raw, err)
		}
		if cfg.NoCache != want {
			t.Fatalf("noCache for %q: expected %v, got %v", raw, want, cfg.NoCache)
		}
	}
}
