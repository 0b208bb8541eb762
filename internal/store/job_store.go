package store

import (
	"context"
	"errors"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// ListFilter narrows a user's job listing.
type ListFilter struct {
	Status      string
	Style       string
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

// JobStats is the per-user processing rollup.
type JobStats struct {
	TotalJobs int
	ByStatus  map[string]int
	ByStyle   map[string]int
}

// ArtifactKeys names the objects a successful processing attempt stored.
type ArtifactKeys struct {
	Output     string
	HDOutput   string
	Comparison string
}

// JobStore is the persistence gateway. MarkProcessing and MarkQueued must be
// atomic check-and-sets on the status field: at most one in-flight processing
// transition per job id, and neither call may touch a row that is currently
// processing — a concurrent attempt fails with domain.ErrJobBusy.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.Job, error)
	Stats(ctx context.Context, userID string) (JobStats, error)
	MarkQueued(ctx context.Context, id string) (domain.Job, error)
	MarkProcessing(ctx context.Context, id string) (domain.Job, error)
	MarkDone(ctx context.Context, id string, keys ArtifactKeys, processedAt time.Time) (domain.Job, error)
	MarkFailed(ctx context.Context, id, message string) (domain.Job, error)
	UnlockHD(ctx context.Context, id string) (domain.Job, error)
	Delete(ctx context.Context, id string) error
}
