package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/pixelgate/pixelgate/internal/domain"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS transform_usage (
	id BIGSERIAL PRIMARY KEY,
	cache_key TEXT NOT NULL,
	bucket TEXT NOT NULL,
	path TEXT NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	source_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	width INT NOT NULL,
	height INT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure transform_usage schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) RecordUsage(ctx context.Context, usage domain.TransformUsage) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transform_usage
		 (cache_key, bucket, path, cache_hit, source_bytes, output_bytes, width, height, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		usage.CacheKey,
		usage.Bucket,
		usage.Path,
		usage.CacheHit,
		usage.SourceBytes,
		usage.OutputBytes,
		usage.Width,
		usage.Height,
		usage.DurationMS,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}
