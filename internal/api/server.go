package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelgate/pixelgate/internal/domain"
	"github.com/pixelgate/pixelgate/internal/id"
	"github.com/pixelgate/pixelgate/internal/pipeline"
	"github.com/pixelgate/pixelgate/internal/queue"
	"github.com/pixelgate/pixelgate/internal/signature"
	"github.com/pixelgate/pixelgate/internal/store"
)

type transformProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type prewarmEnqueuer interface {
	EnqueuePrewarm(ctx context.Context, payload queue.PrewarmPayload) (*asynq.TaskInfo, error)
}

type Options struct {
	SigningSecret  string
	CacheMaxAge    int
	CacheImmutable bool
}

type Server struct {
	logger      *log.Logger
	processor   transformProcessor
	queueClient prewarmEnqueuer
	usageStore  store.UsageStore
	rateLimiter RateLimiter
	opts        Options
	metrics     *metrics
	tracer      trace.Tracer
	mux         *http.ServeMux
}

func NewServer(
	logger *log.Logger,
	processor transformProcessor,
	queueClient prewarmEnqueuer,
	usageStore store.UsageStore,
	rateLimiter RateLimiter,
	opts Options,
) *Server {
	s := &Server{
		logger:      logger,
		processor:   processor,
		queueClient: queueClient,
		usageStore:  usageStore,
		rateLimiter: rateLimiter,
		opts:        opts,
		metrics:     newMetrics(),
		tracer:      otel.Tracer("pixelgate/api"),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/transform", s.handleTransform)
	s.mux.HandleFunc("/v1/prewarm", s.handlePrewarm)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "only GET is supported", "")
		return
	}

	start := time.Now()
	result, err := s.processor.Process(r.Context(), pipeline.Request{
		RawQuery: r.URL.RawQuery,
		Params:   r.URL.Query(),
	})
	if err != nil {
		status, message, details := classifyPipelineError(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("transform failed: %v", err)
		}
		s.metrics.transformTotal.WithLabelValues(statusLabel(status)).Inc()
		writeError(w, status, message, details)
		return
	}

	s.observeTransform(r.Context(), result, time.Since(start))

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("Cache-Control", s.cacheControlValue())
	if result.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) handlePrewarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is supported", "")
		return
	}

	if err := signature.Enforce(r.URL.RawQuery, r.URL.Query().Get("token"), s.opts.SigningSecret); err != nil {
		writeError(w, http.StatusForbidden, err.Error(), "")
		return
	}

	var req domain.PrewarmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	payload := queue.PrewarmPayload{
		JobID:       id.New(),
		Bucket:      req.Bucket,
		Path:        req.Path,
		WebhookURL:  req.WebhookURL,
		Variants:    req.Variants,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueuePrewarm(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue prewarm failed for job %s: %v", payload.JobID, err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue prewarm job", "")
		return
	}

	s.metrics.prewarmEnqueued.Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   payload.JobID,
		"queue":    taskInfo.Queue,
		"task_id":  taskInfo.ID,
		"state":    taskInfo.State.String(),
		"variants": len(payload.Variants),
	})
}

func (s *Server) observeTransform(ctx context.Context, result pipeline.Result, elapsed time.Duration) {
	if result.CacheHit {
		s.metrics.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		s.metrics.cacheLookups.WithLabelValues("miss").Inc()
		s.metrics.transformDuration.Observe(elapsed.Seconds())
	}
	s.metrics.transformTotal.WithLabelValues(statusLabel(http.StatusOK)).Inc()

	if s.usageStore == nil {
		return
	}
	usage := domain.TransformUsage{
		CacheKey:    result.CacheKey,
		Bucket:      result.Bucket,
		Path:        result.Path,
		CacheHit:    result.CacheHit,
		SourceBytes: int64(result.SourceBytes),
		OutputBytes: int64(len(result.Data)),
		Width:       result.Width,
		Height:      result.Height,
		DurationMS:  elapsed.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.usageStore.RecordUsage(ctx, usage); err != nil {
		s.logger.Printf("usage record failed key=%s err=%v", result.CacheKey, err)
	}
}

func (s *Server) cacheControlValue() string {
	value := fmt.Sprintf("public, max-age=%d", s.opts.CacheMaxAge)
	if s.opts.CacheImmutable {
		value += ", immutable"
	}
	return value
}

func classifyPipelineError(err error) (status int, message, details string) {
	var (
		validationErr *pipeline.ValidationError
		signatureErr  *pipeline.SignatureError
		notFoundErr   *pipeline.NotFoundError
		transformErr  *pipeline.TransformError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Reason, ""
	case errors.As(err, &signatureErr):
		return http.StatusForbidden, signatureErr.Reason, ""
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "source image not found",
			notFoundErr.Bucket + "/" + notFoundErr.Key
	case errors.As(err, &transformErr):
		return http.StatusInternalServerError, "image processing failed", transformErr.Stage
	default:
		return http.StatusInternalServerError, "unexpected error", ""
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Status: status, Details: details})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
