package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/toonforge/internal/config"
	"github.com/dunamismax/toonforge/internal/domain"
	"github.com/dunamismax/toonforge/internal/pipeline"
	"github.com/dunamismax/toonforge/internal/queue"
	"github.com/dunamismax/toonforge/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type jobCacher interface {
	Put(ctx context.Context, job domain.Job) error
}

// Server consumes process tasks off the queue and runs them through the
// pipeline processor. CPU-bound work never runs on the API request path;
// a semaphore caps how many pipelines run at once regardless of the asynq
// concurrency setting.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	processor     *pipeline.Processor
	jobStore      store.JobStore
	webhookClient webhookSender
	jobCache      jobCacher
	metrics       *metrics
	tracer        trace.Tracer
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	processor *pipeline.Processor,
	jobStore store.JobStore,
	webhookClient webhookSender,
	jobCache jobCacher,
) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("pipeline processor is required")
	}
	if jobStore == nil {
		return nil, fmt.Errorf("job store is required")
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
					logger.Printf("task failed type=%s err=%v", task.Type(), err)
				}),
			},
		),
		sem:           make(chan struct{}, maxInt(1, workerCfg.MaxActiveJobs)),
		processor:     processor,
		jobStore:      jobStore,
		webhookClient: webhookClient,
		jobCache:      jobCache,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("toonforge/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessJob, s.handleProcessJob)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleProcessJob(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()

	payload, err := queue.ParseProcessJobPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	style := s.lookupStyle(ctx, payload.JobID)
	outcome := domain.JobStatusFailed

	ctx, span := s.tracer.Start(ctx, "worker.process_job", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.style", style),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(style, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(style, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf("Working... job_id=%s style=%s", payload.JobID, style)

	job, result, err := s.processor.Process(ctx, payload.JobID)
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, domain.ErrJobBusy) {
			// The job belongs to another in-flight attempt; nothing to undo.
			outcome = "busy"
			span.SetStatus(codes.Error, "job busy")
			s.logger.Printf("job busy, skipping job_id=%s", payload.JobID)
			return fmt.Errorf("job %s busy: %w", payload.JobID, asynq.SkipRetry)
		}

		span.SetStatus(codes.Error, "pipeline failed")
		s.cacheJob(ctx, job)
		s.dispatchWebhook(ctx, job, "job.failed", map[string]any{
			"job_id":       payload.JobID,
			"status":       domain.JobStatusFailed,
			"style":        style,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
	}

	s.logger.Printf(
		"Processed job_id=%s style=%s output=%s hd=%s size=%dx%d",
		job.ID, job.Style, result.OutputKey, result.HDOutputKey, result.Width, result.Height,
	)

	s.metrics.pixelsProcessedTotal.Add(float64(result.Width * result.Height))
	s.metrics.artifactBytesTotal.WithLabelValues("standard").Add(float64(result.StandardBytes))
	s.metrics.artifactBytesTotal.WithLabelValues("hd").Add(float64(result.HDBytes))
	s.metrics.artifactBytesTotal.WithLabelValues("comparison").Add(float64(result.ComparisonBytes))

	s.cacheJob(ctx, job)
	s.dispatchWebhook(ctx, job, "job.completed", map[string]any{
		"job_id":       job.ID,
		"status":       domain.JobStatusDone,
		"style":        job.Style,
		"output_key":   result.OutputKey,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"width":        result.Width,
		"height":       result.Height,
	})

	outcome = domain.JobStatusDone
	span.SetStatus(codes.Ok, "processed")
	return nil
}

func (s *Server) lookupStyle(ctx context.Context, jobID string) string {
	job, ok, err := s.jobStore.Get(ctx, jobID)
	if err != nil || !ok {
		return "unknown"
	}
	return job.Style
}

func (s *Server) cacheJob(ctx context.Context, job domain.Job) {
	if s.jobCache == nil || job.ID == "" {
		return
	}
	if err := s.jobCache.Put(ctx, job); err != nil {
		s.logger.Printf("job cache write failed job_id=%s err=%v", job.ID, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, job domain.Job, event string, body map[string]any) {
	if job.WebhookURL == "" || s.webhookClient == nil {
		return
	}
	if err := s.webhookClient.Send(ctx, job.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", job.ID, event, err)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
