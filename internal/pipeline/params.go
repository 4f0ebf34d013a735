package pipeline

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// Limits are the configured validation bounds, read once at process
// start and passed in explicitly.
type Limits struct {
	MaxWidth       int
	MaxHeight      int
	DefaultQuality int
	DefaultBucket  string
}

// ParseParams validates raw query parameters into a TransformConfig.
// It is a pure function of (values, limits); all failures are
// ValidationErrors carrying the offending parameter.
func ParseParams(values url.Values, limits Limits) (domain.TransformConfig, error) {
	rawPath, ok := firstValue(values, "path")
	if !ok {
		return domain.TransformConfig{}, validationErrorf("path is required")
	}
	cleanPath, err := sanitizePath(rawPath)
	if err != nil {
		return domain.TransformConfig{}, err
	}

	bucket := limits.DefaultBucket
	if raw, ok := firstValue(values, "bucket"); ok {
		if strings.TrimSpace(raw) == "" {
			return domain.TransformConfig{}, validationErrorf("bucket must not be empty")
		}
		bucket = raw
	}
	if bucket == "" {
		return domain.TransformConfig{}, validationErrorf("no bucket requested and no default configured")
	}

	width, err := intParam(values, "w", limits.MaxWidth, 0)
	if err != nil {
		return domain.TransformConfig{}, err
	}
	height, err := intParam(values, "h", limits.MaxHeight, 0)
	if err != nil {
		return domain.TransformConfig{}, err
	}
	quality, err := intParam(values, "q", 100, limits.DefaultQuality)
	if err != nil {
		return domain.TransformConfig{}, err
	}

	fitRaw, _ := firstValue(values, "fit")
	fit, err := domain.ParseFit(fitRaw)
	if err != nil {
		return domain.TransformConfig{}, validationErrorf("%v", err)
	}

	formatRaw, _ := firstValue(values, "format")
	format, err := domain.ParseFormat(formatRaw)
	if err != nil {
		return domain.TransformConfig{}, validationErrorf("%v", err)
	}

	cropRaw, _ := firstValue(values, "crop")
	crop, err := domain.ParseCrop(cropRaw)
	if err != nil {
		return domain.TransformConfig{}, validationErrorf("%v", err)
	}

	var background *domain.RGB
	if raw, ok := firstValue(values, "bg"); ok && raw != "" {
		color, err := domain.ParseHexColor(raw)
		if err != nil {
			return domain.TransformConfig{}, validationErrorf("%v", err)
		}
		background = &color
	}

	noCache, _ := firstValue(values, "no_cache")

	return domain.TransformConfig{
		Bucket:     bucket,
		Path:       cleanPath,
		Width:      width,
		Height:     height,
		Fit:        fit,
		Format:     format,
		Quality:    quality,
		Background: background,
		Crop:       crop,
		NoCache:    noCache == "1",
	}, nil
}

// sanitizePath rejects absolute paths, traversal, and the cache key
// separator, then trims surrounding slashes. Keeping keySeparator out
// of the path keeps every derived cache key unambiguous: no plain
// path can collide with a path-plus-parameters key.
func sanitizePath(raw string) (string, error) {
	if strings.HasPrefix(raw, "/") {
		return "", validationErrorf("path must be relative, got %q", raw)
	}
	if strings.Contains(raw, keySeparator) {
		return "", validationErrorf("path must not contain %q", keySeparator)
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "", validationErrorf("path must not be empty")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", validationErrorf("path must not contain traversal segments")
		}
	}
	return trimmed, nil
}

// intParam parses an optional base-10 integer in [1, max]. A missing
// or empty parameter yields fallback without error.
func intParam(values url.Values, name string, max, fallback int) (int, error) {
	raw, ok := firstValue(values, name)
	if !ok || raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationErrorf("%s must be an integer, got %q", name, raw)
	}
	if parsed < 1 || parsed > max {
		return 0, validationErrorf("%s must be between 1 and %d, got %d", name, max, parsed)
	}
	return parsed, nil
}

func firstValue(values url.Values, name string) (string, bool) {
	vs, ok := values[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
