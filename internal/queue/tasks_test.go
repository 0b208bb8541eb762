package queue

import (
	"testing"
	"time"
)

func TestProcessJobTaskRoundTrip(t *testing.T) {
	payload := ProcessJobPayload{
		JobID:       "job-123",
		RequestedAt: time.Now().UTC().Truncate(time.Second),
	}

	task, err := NewProcessJobTask(payload)
	if err != nil {
		t.Fatalf("NewProcessJobTask returned error: %v", err)
	}
	if task.Type() != TypeProcessJob {
		t.Fatalf("expected task type %s, got %s", TypeProcessJob, task.Type())
	}

	parsed, err := ParseProcessJobPayload(task)
	if err != nil {
		t.Fatalf("ParseProcessJobPayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if !parsed.RequestedAt.Equal(payload.RequestedAt) {
		t.Fatalf("expected requested_at %v, got %v", payload.RequestedAt, parsed.RequestedAt)
	}
}
