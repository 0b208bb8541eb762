package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
	"github.com/redis/go-redis/v9"
)

// JobCache keeps terminal job metadata in Redis with a short TTL so the
// status read path does not hit Postgres for jobs that can no longer change.
// Non-terminal jobs are never cached.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(cfg Config) *JobCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JobCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func (c *JobCache) Close() error {
	return c.client.Close()
}

func key(jobID string) string {
	return "toonforge:job:" + jobID
}

// Get returns the cached job, with ok=false on a miss.
func (c *JobCache) Get(ctx context.Context, jobID string) (domain.Job, bool, error) {
	raw, err := c.client.Get(ctx, key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("cache get job %s: %w", jobID, err)
	}

	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.Job{}, false, fmt.Errorf("cache decode job %s: %w", jobID, err)
	}
	return job, true, nil
}

// Put stores a job only when its status is terminal.
func (c *JobCache) Put(ctx context.Context, job domain.Job) error {
	if !domain.Terminal(job.Status) {
		return nil
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("cache encode job %s: %w", job.ID, err)
	}
	if err := c.client.Set(ctx, key(job.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put job %s: %w", job.ID, err)
	}
	return nil
}

// Invalidate drops a cached job, used when a terminal job is re-submitted,
// unlocked, or deleted.
func (c *JobCache) Invalidate(ctx context.Context, jobID string) error {
	if err := c.client.Del(ctx, key(jobID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate job %s: %w", jobID, err)
	}
	return nil
}
