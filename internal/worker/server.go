package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelgate/pixelgate/internal/config"
	"github.com/pixelgate/pixelgate/internal/pipeline"
	"github.com/pixelgate/pixelgate/internal/queue"
)

type transformProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

// Server consumes prewarm tasks and runs each variant through the
// same cache-aware pipeline a live request would take, so already
// warm variants are served from cache and skipped for free.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	processor     transformProcessor
	webhookClient webhookSender
	metrics       *metrics
	tracer        trace.Tracer
}

type variantOutcome struct {
	CacheKey    string `json:"cache_key,omitempty"`
	CacheHit    bool   `json:"cache_hit"`
	OutputBytes int    `json:"output_bytes"`
	Error       string `json:"error,omitempty"`
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	processor transformProcessor,
	webhookClient webhookSender,
) (*Server, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		processor:     processor,
		webhookClient: webhookClient,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("pixelgate/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePrewarmCache, s.handlePrewarm)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handlePrewarm(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParsePrewarmPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.prewarm", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.path", payload.Path),
		attribute.Int("job.variants", len(payload.Variants)),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf("warming job_id=%s path=%s variants=%d", payload.JobID, payload.Path, len(payload.Variants))

	outcomes := make([]variantOutcome, 0, len(payload.Variants))
	failures := 0
	for _, variant := range payload.Variants {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := s.processor.Process(ctx, pipeline.Request{
			Params: variant.QueryValues(payload.Bucket, payload.Path),
		})
		if err != nil {
			failures++
			s.metrics.variantsTotal.WithLabelValues("failed").Inc()
			outcomes = append(outcomes, variantOutcome{Error: err.Error()})
			continue
		}

		label := "warmed"
		if result.CacheHit {
			label = "already_warm"
		}
		s.metrics.variantsTotal.WithLabelValues(label).Inc()
		s.metrics.bytesWrittenTotal.Add(float64(len(result.Data)))
		outcomes = append(outcomes, variantOutcome{
			CacheKey:    result.CacheKey,
			CacheHit:    result.CacheHit,
			OutputBytes: len(result.Data),
		})
	}

	s.logger.Printf("warmed job_id=%s variants=%d failures=%d", payload.JobID, len(payload.Variants), failures)

	event := "prewarm.completed"
	if failures == len(payload.Variants) && failures > 0 {
		event = "prewarm.failed"
		span.SetStatus(codes.Error, "all variants failed")
	} else {
		outcome = "succeeded"
		span.SetStatus(codes.Ok, "warmed")
	}

	if err := s.dispatchWebhook(ctx, payload, event, map[string]any{
		"job_id":       payload.JobID,
		"path":         payload.Path,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"failures":     failures,
		"variants":     outcomes,
	}); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.PrewarmPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}
	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
