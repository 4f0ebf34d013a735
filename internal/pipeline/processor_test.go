package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"net/url"
	"os"
	"testing"

	"github.com/pixelgate/pixelgate/internal/domain"
	"github.com/pixelgate/pixelgate/internal/signature"
)

type fakeBlobStore struct {
	objects    map[string][]byte
	failReads  map[string]error
	failWrites bool
	writes     int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:   map[string][]byte{},
		failReads: map[string]error{},
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *fakeBlobStore) put(bucket, key string, data []byte) {
	s.objects[objectKey(bucket, key)] = data
}

func (s *fakeBlobStore) ReadObject(_ context.Context, bucket, key string) ([]byte, error) {
	if err, ok := s.failReads[objectKey(bucket, key)]; ok {
		return nil, err
	}
	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object not found: %s/%s", bucket, key)
	}
	return data, nil
}

func (s *fakeBlobStore) WriteObject(_ context.Context, bucket, key string, data []byte, _ string, _ int) error {
	s.writes++
	if s.failWrites {
		return errors.New("cache bucket unavailable")
	}
	s.put(bucket, key, data)
	return nil
}

type countingTransformer struct {
	inner Transformer
	calls int
}

func (c *countingTransformer) Transform(ctx context.Context, source []byte, cfg domain.TransformConfig) (TransformResult, error) {
	c.calls++
	return c.inner.Transform(ctx, source, cfg)
}

func newTestProcessor(store BlobStore, transformer Transformer, secret string) *Processor {
	return NewProcessor(
		log.New(os.Stdout, "[test] ", log.LstdFlags),
		store,
		transformer,
		Options{
			Limits:        testLimits,
			SigningSecret: secret,
			CacheBucket:   "cache",
			CacheMaxAge:   600,
		},
	)
}

func requestFor(t *testing.T, rawQuery string) Request {
	t.Helper()
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	return Request{RawQuery: rawQuery, Params: values}
}

func TestProcessorMissThenHit(t *testing.T) {
	store := newFakeBlobStore()
	store.put("photos", "test.jpg", buildTestPNG(t, 100, 80, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	transformer := &countingTransformer{inner: NewEngine(nil)}
	processor := newTestProcessor(store, transformer, "")

	first, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40"))
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first request must be a miss")
	}
	if transformer.calls != 1 {
		t.Fatalf("expected one transform, got %d", transformer.calls)
	}
	if first.CacheKey != "test__w=40.jpg" {
		t.Fatalf("unexpected cache key: %s", first.CacheKey)
	}
	if first.Width != 40 || first.Height != 32 {
		t.Fatalf("unexpected output dimensions: %dx%d", first.Width, first.Height)
	}
	if first.Bucket != "photos" || first.Path != "test.jpg" {
		t.Fatalf("expected the result to carry its source, got %s/%s", first.Bucket, first.Path)
	}
	if _, ok := store.objects[objectKey("cache", "test__w=40.jpg")]; !ok {
		t.Fatal("expected cache write under the derived key")
	}

	second, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40"))
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second request must hit the cache")
	}
	if transformer.calls != 1 {
		t.Fatalf("cache hit must not transform again, got %d calls", transformer.calls)
	}
	if string(second.Data) != string(first.Data) {
		t.Fatal("cached bytes differ from transformed bytes")
	}
	if second.Bucket != "photos" || second.Path != "test.jpg" {
		t.Fatalf("hits must carry their source too, got %s/%s", second.Bucket, second.Path)
	}
}

func TestProcessorCacheWriteFailureIsNonFatal(t *testing.T) {
	store := newFakeBlobStore()
	store.put("photos", "test.jpg", buildTestPNG(t, 100, 80, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	store.failWrites = true
	processor := newTestProcessor(store, NewEngine(nil), "")

	result, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40"))
	if err != nil {
		t.Fatalf("expected success despite cache outage, got %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected transformed bytes")
	}
	if store.writes != 1 {
		t.Fatalf("expected one attempted cache write, got %d", store.writes)
	}
}

func TestProcessorCacheLookupErrorFallsThroughToMiss(t *testing.T) {
	store := newFakeBlobStore()
	store.put("photos", "test.jpg", buildTestPNG(t, 100, 80, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	store.failReads[objectKey("cache", "test__w=40.jpg")] = errors.New("transient read failure")
	transformer := &countingTransformer{inner: NewEngine(nil)}
	processor := newTestProcessor(store, transformer, "")

	result, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40"))
	if err != nil {
		t.Fatalf("expected miss-path success, got %v", err)
	}
	if result.CacheHit || transformer.calls != 1 {
		t.Fatalf("expected fallthrough to transform, hit=%v calls=%d", result.CacheHit, transformer.calls)
	}
}

func TestProcessorNoCacheBypassesLookupButStillWrites(t *testing.T) {
	store := newFakeBlobStore()
	store.put("photos", "test.jpg", buildTestPNG(t, 100, 80, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	store.put("cache", "test__w=40.jpg", []byte("stale entry"))
	transformer := &countingTransformer{inner: NewEngine(nil)}
	processor := newTestProcessor(store, transformer, "")

	result, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40&no_cache=1"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.CacheHit || transformer.calls != 1 {
		t.Fatalf("no_cache must transform, hit=%v calls=%d", result.CacheHit, transformer.calls)
	}
	if string(store.objects[objectKey("cache", "test__w=40.jpg")]) == "stale entry" {
		t.Fatal("expected cache entry to be rewritten")
	}
}

func TestProcessorOriginMissing(t *testing.T) {
	processor := newTestProcessor(newFakeBlobStore(), NewEngine(nil), "")

	_, err := processor.Process(context.Background(), requestFor(t, "path=absent.jpg&w=40"))
	if err == nil {
		t.Fatal("expected not-found error")
	}
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if notFoundErr.Bucket != "photos" || notFoundErr.Key != "absent.jpg" {
		t.Fatalf("unexpected not-found target: %+v", notFoundErr)
	}
}

func TestProcessorValidationBeforeAnyIO(t *testing.T) {
	store := newFakeBlobStore()
	transformer := &countingTransformer{inner: NewEngine(nil)}
	processor := newTestProcessor(store, transformer, "")

	_, err := processor.Process(context.Background(), requestFor(t, "path=..%2Fsecret&w=40"))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if transformer.calls != 0 || store.writes != 0 {
		t.Fatal("validation failure must not touch storage or the engine")
	}
}

func TestProcessorSignatureEnforcement(t *testing.T) {
	store := newFakeBlobStore()
	store.put("photos", "test.jpg", buildTestPNG(t, 100, 80, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	processor := newTestProcessor(store, NewEngine(nil), "topsecret")

	_, err := processor.Process(context.Background(), requestFor(t, "path=test.jpg&w=40"))
	var signatureErr *SignatureError
	if !errors.As(err, &signatureErr) {
		t.Fatalf("expected SignatureError without token, got %v", err)
	}

	rawQuery := "path=test.jpg&w=40"
	token := signature.Sign(rawQuery, "topsecret")
	signed := rawQuery + "&token=" + token

	result, err := processor.Process(context.Background(), requestFor(t, signed))
	if err != nil {
		t.Fatalf("expected signed request to pass, got %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected transformed bytes")
	}
}
