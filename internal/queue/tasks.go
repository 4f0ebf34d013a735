package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pixelgate/pixelgate/internal/domain"
)

const TypePrewarmCache = "cache:prewarm"

// PrewarmPayload describes one batch of transform variants to build
// ahead of demand.
type PrewarmPayload struct {
	JobID       string                  `json:"job_id"`
	Bucket      string                  `json:"bucket,omitempty"`
	Path        string                  `json:"path"`
	WebhookURL  string                  `json:"webhook_url,omitempty"`
	Variants    []domain.PrewarmVariant `json:"variants"`
	RequestedAt time.Time               `json:"requested_at"`
}

func NewPrewarmTask(payload PrewarmPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal prewarm payload: %w", err)
	}
	return asynq.NewTask(TypePrewarmCache, body), nil
}

func ParsePrewarmPayload(task *asynq.Task) (PrewarmPayload, error) {
	var payload PrewarmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PrewarmPayload{}, fmt.Errorf("unmarshal prewarm payload: %w", err)
	}
	return payload, nil
}
