package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// keySeparator joins cache key parts. sanitizePath rejects paths
// containing it, so keys parse unambiguously.
const keySeparator = "__"

// CacheKey maps a validated config to its deterministic storage key.
// Default-valued parameters are collapsed so that requests differing
// only in explicitly-spelled defaults hit the same cache entry.
func CacheKey(cfg domain.TransformConfig, defaultQuality int) string {
	base := strings.TrimSuffix(cfg.Path, path.Ext(cfg.Path))
	inferred := domain.FormatFromPath(cfg.Path)
	sized := cfg.Width > 0 || cfg.Height > 0

	parts := []string{base}
	if cfg.Width > 0 {
		parts = append(parts, fmt.Sprintf("w=%d", cfg.Width))
	}
	if cfg.Height > 0 {
		parts = append(parts, fmt.Sprintf("h=%d", cfg.Height))
	}
	if cfg.Fit != domain.FitCover && sized {
		parts = append(parts, "fit="+string(cfg.Fit))
	}
	if cfg.Format != "" && cfg.Format != inferred {
		parts = append(parts, "fmt="+string(cfg.Format))
	}
	if cfg.Quality != defaultQuality {
		parts = append(parts, fmt.Sprintf("q=%d", cfg.Quality))
	}
	if cfg.Background != nil {
		parts = append(parts, "bg="+cfg.Background.Hex())
	}
	if cfg.Crop != domain.CropCenter && sized {
		parts = append(parts, "crop="+string(cfg.Crop))
	}

	return strings.Join(parts, keySeparator) + "." + cfg.OutputFormat().Extension()
}
