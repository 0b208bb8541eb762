package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

var ErrJobBusy = errors.New("job is already processing")

// Job tracks one (image, style, parameters) request through its lifecycle.
// Source fields are immutable after creation; only the orchestrator mutates
// the rest, through the store.
type Job struct {
	ID            string
	UserID        string
	SourceKey     string
	Style         string
	Params        map[string]any
	Status        string
	ErrorMessage  string
	OutputKey     string
	HDOutputKey   string
	ComparisonKey string
	HDUnlocked    bool
	WebhookURL    string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	UpdatedAt     time.Time
}

type CreateJobRequest struct {
	Style      string         `json:"style"`
	Params     map[string]any `json:"params,omitempty"`
	ObjectKey  string         `json:"object_key,omitempty"`
	WebhookURL string         `json:"webhook_url,omitempty"`
}

func (r CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Style) == "" {
		return errors.New("style is required")
	}
	return nil
}

// CanStartProcessing reports whether a transition into processing is legal
// from the given status. Re-processing a done or failed job is allowed;
// a concurrent attempt against a processing job is not.
func CanStartProcessing(status string) error {
	switch status {
	case JobStatusQueued, JobStatusDone, JobStatusFailed:
		return nil
	case JobStatusProcessing:
		return ErrJobBusy
	default:
		return fmt.Errorf("cannot start processing from status %q", status)
	}
}

// Terminal reports whether the status ends a processing attempt.
func Terminal(status string) bool {
	return status == JobStatusDone || status == JobStatusFailed
}
