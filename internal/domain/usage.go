package domain

import "time"

// TransformUsage is one observe-only accounting record per served
// transform. Recording it never affects the response path.
type TransformUsage struct {
	CacheKey    string
	Bucket      string
	Path        string
	CacheHit    bool
	SourceBytes int64
	OutputBytes int64
	Width       int
	Height      int
	DurationMS  int64
	CreatedAt   time.Time
}
