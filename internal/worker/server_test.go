package worker

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/pixelgate/pixelgate/internal/domain"
	"github.com/pixelgate/pixelgate/internal/pipeline"
	"github.com/pixelgate/pixelgate/internal/queue"
)

type fakeProcessor struct {
	results map[string]pipeline.Result
	err     error
	queries []string
}

func (p *fakeProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	query := req.Params.Encode()
	p.queries = append(p.queries, query)
	if p.err != nil {
		return pipeline.Result{}, p.err
	}
	if result, ok := p.results[query]; ok {
		return result, nil
	}
	return pipeline.Result{Data: []byte("bytes"), CacheKey: "default.jpg"}, nil
}

type fakeWebhook struct {
	endpoint string
	event    string
	body     map[string]any
	err      error
	calls    int
}

func (w *fakeWebhook) Send(_ context.Context, endpoint, event string, payload any) error {
	w.calls++
	w.endpoint = endpoint
	w.event = event
	w.body, _ = payload.(map[string]any)
	return w.err
}

func newTestWorker(processor transformProcessor, hook webhookSender) *Server {
	return &Server{
		logger:        log.New(os.Stdout, "[worker-test] ", log.LstdFlags),
		sem:           make(chan struct{}, 1),
		processor:     processor,
		webhookClient: hook,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("pixelgate/worker-test"),
	}
}

func prewarmTask(t *testing.T, payload queue.PrewarmPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewPrewarmTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestHandlePrewarmProcessesEachVariant(t *testing.T) {
	processor := &fakeProcessor{results: map[string]pipeline.Result{}}
	hook := &fakeWebhook{}
	srv := newTestWorker(processor, hook)

	task := prewarmTask(t, queue.PrewarmPayload{
		JobID:      "job-1",
		Bucket:     "photos",
		Path:       "hero.jpg",
		WebhookURL: "https://example.com/hook",
		Variants: []domain.PrewarmVariant{
			{Width: 400},
			{Width: 800, Height: 600, Fit: "contain"},
		},
		RequestedAt: time.Now().UTC(),
	})

	if err := srv.handlePrewarm(context.Background(), task); err != nil {
		t.Fatalf("handle prewarm: %v", err)
	}
	if len(processor.queries) != 2 {
		t.Fatalf("expected 2 variant transforms, got %d", len(processor.queries))
	}
	if processor.queries[0] != "bucket=photos&path=hero.jpg&w=400" {
		t.Fatalf("unexpected first variant query: %s", processor.queries[0])
	}
	if hook.calls != 1 || hook.event != "prewarm.completed" {
		t.Fatalf("expected one completed webhook, calls=%d event=%s", hook.calls, hook.event)
	}
	if hook.body["job_id"] != "job-1" || hook.body["failures"] != 0 {
		t.Fatalf("unexpected webhook body: %+v", hook.body)
	}
}

func TestHandlePrewarmAllVariantsFailed(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("origin unreachable")}
	hook := &fakeWebhook{}
	srv := newTestWorker(processor, hook)

	task := prewarmTask(t, queue.PrewarmPayload{
		JobID:      "job-2",
		Path:       "hero.jpg",
		WebhookURL: "https://example.com/hook",
		Variants:   []domain.PrewarmVariant{{Width: 400}},
	})

	if err := srv.handlePrewarm(context.Background(), task); err != nil {
		t.Fatalf("variant failures alone must not fail the task: %v", err)
	}
	if hook.event != "prewarm.failed" {
		t.Fatalf("expected failed webhook event, got %s", hook.event)
	}
	if hook.body["failures"] != 1 {
		t.Fatalf("unexpected failure count: %+v", hook.body)
	}
}

func TestHandlePrewarmSkipsWebhookWithoutURL(t *testing.T) {
	hook := &fakeWebhook{}
	srv := newTestWorker(&fakeProcessor{}, hook)

	task := prewarmTask(t, queue.PrewarmPayload{
		JobID:    "job-3",
		Path:     "hero.jpg",
		Variants: []domain.PrewarmVariant{{Width: 400}},
	})

	if err := srv.handlePrewarm(context.Background(), task); err != nil {
		t.Fatalf("handle prewarm: %v", err)
	}
	if hook.calls != 0 {
		t.Fatalf("expected no webhook dispatch, got %d", hook.calls)
	}
}

func TestHandlePrewarmMalformedPayloadSkipsRetry(t *testing.T) {
	srv := newTestWorker(&fakeProcessor{}, nil)

	err := srv.handlePrewarm(context.Background(), asynq.NewTask(queue.TypePrewarmCache, []byte("{not json")))
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must skip retries, got %v", err)
	}
}

func TestHandlePrewarmWebhookFailurePropagates(t *testing.T) {
	hook := &fakeWebhook{err: errors.New("endpoint down")}
	srv := newTestWorker(&fakeProcessor{}, hook)

	task := prewarmTask(t, queue.PrewarmPayload{
		JobID:      "job-4",
		Path:       "hero.jpg",
		WebhookURL: "https://example.com/hook",
		Variants:   []domain.PrewarmVariant{{Width: 400}},
	})

	if err := srv.handlePrewarm(context.Background(), task); err == nil {
		t.Fatal("expected webhook delivery failure to requeue the task")
	}
}
