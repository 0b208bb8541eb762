package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
)

// MemoryJobStore backs tests and single-process setups. The mutex held
// across each status mutation provides the same check-and-set guarantee the
// Postgres store gets from its conditional UPDATE.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]domain.Job),
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryJobStore) List(_ context.Context, userID string, filter ListFilter) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Job, 0)
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Style != "" && job.Style != filter.Style {
			continue
		}
		if !filter.CreatedFrom.IsZero() && job.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && job.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		matched = append(matched, job)
	}

	sortJobsByCreatedDesc(matched)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.Job{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *MemoryJobStore) Stats(_ context.Context, userID string) (JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := JobStats{
		ByStatus: make(map[string]int),
		ByStyle:  make(map[string]int),
	}
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		stats.TotalJobs++
		stats.ByStatus[job.Status]++
		stats.ByStyle[job.Style]++
	}
	return stats, nil
}

// MarkQueued is the re-submission transition: it refuses to demote a job that
// another attempt is currently processing.
func (s *MemoryJobStore) MarkQueued(_ context.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	if job.Status == domain.JobStatusProcessing {
		return domain.Job{}, domain.ErrJobBusy
	}

	job.Status = domain.JobStatusQueued
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) MarkProcessing(_ context.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	if err := domain.CanStartProcessing(job.Status); err != nil {
		return domain.Job{}, err
	}

	job.Status = domain.JobStatusProcessing
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) MarkDone(_ context.Context, id string, keys ArtifactKeys, processedAt time.Time) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	job.Status = domain.JobStatusDone
	job.OutputKey = keys.Output
	job.HDOutputKey = keys.HDOutput
	job.ComparisonKey = keys.Comparison
	job.ErrorMessage = ""
	job.ProcessedAt = &processedAt
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, id, message string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	// Output keys from a prior successful attempt stay untouched.
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) UnlockHD(_ context.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	job.HDUnlocked = true
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func sortJobsByCreatedDesc(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
