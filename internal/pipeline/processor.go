package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelgate/pixelgate/internal/domain"
	"github.com/pixelgate/pixelgate/internal/signature"
)

// BlobStore is the external storage capability: the origin bucket is
// read-only, the cache bucket is read-write.
type BlobStore interface {
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
	WriteObject(ctx context.Context, bucket, key string, data []byte, contentType string, cacheControlSeconds int) error
}

// Request is one raw transform request as received at the HTTP
// boundary. RawQuery is kept alongside the parsed params because the
// signature is computed over the bytes the client sent.
type Request struct {
	RawQuery string
	Params   url.Values
}

// Result is the served artifact plus the observability facts the
// caller reports on.
type Result struct {
	Data        []byte
	Format      domain.Format
	CacheKey    string
	Bucket      string
	Path        string
	CacheHit    bool
	SourceBytes int
	Width       int
	Height      int
}

type Options struct {
	Limits        Limits
	SigningSecret string
	CacheBucket   string
	CacheMaxAge   int
}

// Processor runs the transform request pipeline: verify signature,
// validate, derive the cache key, then serve from cache or build,
// return, and populate the cache best-effort.
type Processor struct {
	logger      *log.Logger
	store       BlobStore
	transformer Transformer
	opts        Options
	tracer      trace.Tracer
}

func NewProcessor(logger *log.Logger, store BlobStore, transformer Transformer, opts Options) *Processor {
	return &Processor{
		logger:      logger,
		store:       store,
		transformer: transformer,
		opts:        opts,
		tracer:      otel.Tracer("pixelgate/pipeline"),
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if err := signature.Enforce(req.RawQuery, req.Params.Get("token"), p.opts.SigningSecret); err != nil {
		return Result{}, &SignatureError{Reason: err.Error()}
	}

	cfg, err := ParseParams(req.Params, p.opts.Limits)
	if err != nil {
		return Result{}, err
	}

	key := CacheKey(cfg, p.opts.Limits.DefaultQuality)

	ctx, span := p.tracer.Start(ctx, "pipeline.process")
	span.SetAttributes(
		attribute.String("transform.bucket", cfg.Bucket),
		attribute.String("transform.path", cfg.Path),
		attribute.String("transform.cache_key", key),
	)
	defer span.End()

	if !cfg.NoCache {
		if cached, ok := p.lookupCache(ctx, key); ok {
			span.SetAttributes(attribute.Bool("transform.cache_hit", true))
			return Result{
				Data:     cached,
				Format:   cfg.OutputFormat(),
				CacheKey: key,
				Bucket:   cfg.Bucket,
				Path:     cfg.Path,
				CacheHit: true,
			}, nil
		}
	}
	span.SetAttributes(attribute.Bool("transform.cache_hit", false))

	source, err := p.store.ReadObject(ctx, cfg.Bucket, cfg.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "origin fetch failed")
		return Result{}, &NotFoundError{Bucket: cfg.Bucket, Key: cfg.Path, Err: err}
	}

	out, err := p.transformer.Transform(ctx, source, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		return Result{}, err
	}

	p.writeCache(ctx, key, out)

	return Result{
		Data:        out.Data,
		Format:      out.Format,
		CacheKey:    key,
		Bucket:      cfg.Bucket,
		Path:        cfg.Path,
		SourceBytes: len(source),
		Width:       out.Width,
		Height:      out.Height,
	}, nil
}

// lookupCache treats every non-success identically: any read failure,
// not-found included, is a miss.
func (p *Processor) lookupCache(ctx context.Context, key string) ([]byte, bool) {
	data, err := p.store.ReadObject(ctx, p.opts.CacheBucket, key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// writeCache populates the cache after a successful transform. A
// failed write is logged and dropped; the caller still gets its
// bytes, only the future hit rate suffers.
func (p *Processor) writeCache(ctx context.Context, key string, out TransformResult) {
	err := p.store.WriteObject(ctx, p.opts.CacheBucket, key, out.Data, out.Format.ContentType(), p.opts.CacheMaxAge)
	if err != nil {
		cacheErr := &CacheError{Op: "write", Err: fmt.Errorf("key %s: %w", key, err)}
		p.logger.Printf("%v", cacheErr)
	}
}
