package store

import (
	"context"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// UsageStore records per-transform accounting. Writes are
// observe-only: callers log failures and move on.
type UsageStore interface {
	RecordUsage(ctx context.Context, usage domain.TransformUsage) error
}
