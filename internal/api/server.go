package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
	"github.com/dunamismax/toonforge/internal/effect"
	"github.com/dunamismax/toonforge/internal/id"
	"github.com/dunamismax/toonforge/internal/queue"
	"github.com/dunamismax/toonforge/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type queueEnqueuer interface {
	EnqueueProcessJob(ctx context.Context, payload queue.ProcessJobPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	RemoveObject(ctx context.Context, objectKey string) error
}

type jobCache interface {
	Get(ctx context.Context, jobID string) (domain.Job, bool, error)
	Put(ctx context.Context, job domain.Job) error
	Invalidate(ctx context.Context, jobID string) error
}

type Config struct {
	UserHeader  string
	PresignTTL  time.Duration
	DownloadTTL time.Duration
}

// Server is the thin request-path surface: it creates and reads jobs and
// enqueues processing, but never runs the pipeline itself.
type Server struct {
	logger      *log.Logger
	cfg         Config
	queueClient queueEnqueuer
	jobStore    store.JobStore
	storage     objectStorage
	cache       jobCache
	metrics     *metrics
	tracer      trace.Tracer
	mux         *http.ServeMux
}

func NewServer(
	logger *log.Logger,
	cfg Config,
	queueClient queueEnqueuer,
	jobStore store.JobStore,
	storage objectStorage,
	cache jobCache,
) *Server {
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-Toonforge-User"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = 1 * time.Hour
	}

	s := &Server{
		logger:      logger,
		cfg:         cfg,
		queueClient: queueClient,
		jobStore:    jobStore,
		storage:     storage,
		cache:       cache,
		metrics:     newMetrics(),
		tracer:      otel.Tracer("toonforge/api"),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /v1/jobs/stats", s.handleJobStats)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /v1/jobs/{id}/start", s.handleStartJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}/output", s.handleGetOutput)
	s.mux.HandleFunc("POST /v1/jobs/{id}/hd-unlock", s.handleUnlockHD)
	s.mux.HandleFunc("DELETE /v1/jobs/{id}", s.handleDeleteJob)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identity returns the already-verified user id supplied by the auth layer
// in front of this service. The core never authenticates.
func (s *Server) identity(r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(s.cfg.UserHeader))
	return userID, userID != ""
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}

	var req domain.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	style := strings.ToLower(strings.TrimSpace(req.Style))
	if _, err := effect.Describe(style); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Reject type errors up front; clamping and odd-repair happen again in
	// the worker right before the pipeline runs.
	if _, err := effect.Normalize(style, req.Params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceKey := strings.TrimSpace(req.ObjectKey)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceKey == "" {
		sourceKey = fmt.Sprintf("uploads/%s/source", jobID)
		url, err := s.storage.PresignedPutURL(r.Context(), sourceKey, s.cfg.PresignTTL)
		if err != nil {
			s.logger.Printf("generate presigned url failed for job %s: %v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	job := domain.Job{
		ID:         jobID,
		UserID:     userID,
		SourceKey:  sourceKey,
		Style:      style,
		Params:     req.Params,
		Status:     domain.JobStatusQueued,
		WebhookURL: req.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create job failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
		"style":  job.Style,
		"upload": map[string]string{
			"object_key":          job.SourceKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/jobs/%s/start", job.ID),
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	exists, err := s.storage.ObjectExists(r.Context(), job.SourceKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "source object check failed"})
		return
	}
	if !exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "source object is missing: " + job.SourceKey})
		return
	}

	// Re-submission of a terminal job goes back through queued before the task
	// exists, so a worker can never observe its job demoted mid-flight. The
	// store-level CAS rejects a job that is already processing.
	if _, err := s.jobStore.MarkQueued(r.Context(), job.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrJobBusy):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "job is already processing"})
		case errors.Is(err, store.ErrJobNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		default:
			s.logger.Printf("mark queued failed for job %s: %v", job.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue job"})
		}
		return
	}
	s.invalidateCache(r.Context(), job.ID)

	payload := queue.ProcessJobPayload{
		JobID:       job.ID,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueProcessJob(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      domain.JobStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}
	jobID := r.PathValue("id")

	if s.cache != nil {
		if job, hit, err := s.cache.Get(r.Context(), jobID); err == nil && hit && job.UserID == userID {
			writeJSON(w, http.StatusOK, jobResponse(job))
			return
		}
	}

	job, found, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed for job %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	if !found || job.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	if s.cache != nil && domain.Terminal(job.Status) {
		if err := s.cache.Put(r.Context(), job); err != nil {
			s.logger.Printf("cache job failed for job %s: %v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}

	filter := store.ListFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Style:  strings.TrimSpace(r.URL.Query().Get("style")),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	var err error
	if filter.CreatedFrom, err = queryTime(r, "created_after"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if filter.CreatedTo, err = queryTime(r, "created_before"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	jobs, err := s.jobStore.List(r.Context(), userID, filter)
	if err != nil {
		s.logger.Printf("list jobs failed for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list jobs"})
		return
	}

	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": items})
}

// handleJobStats rolls up the caller's jobs by status and style for the
// account dashboard.
func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}

	stats, err := s.jobStore.Stats(r.Context(), userID)
	if err != nil {
		s.logger.Printf("job stats failed for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_jobs": stats.TotalJobs,
		"by_status":  stats.ByStatus,
		"by_style":   stats.ByStyle,
	})
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	// The legacy hd flag maps onto the variant parameter.
	variant := strings.TrimSpace(r.URL.Query().Get("variant"))
	if variant == "" {
		if hd, _ := strconv.ParseBool(r.URL.Query().Get("hd")); hd {
			variant = domain.OutputHD
		} else {
			variant = domain.OutputStandard
		}
	}

	outputKey, err := domain.ResolveOutput(job, variant)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownVariant):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrOutputNotReady):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "status": job.Status})
		case errors.Is(err, domain.ErrPaymentRequired):
			writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve output"})
		}
		return
	}

	url, err := s.storage.PresignedGetURL(r.Context(), outputKey, s.cfg.DownloadTTL)
	if err != nil {
		s.logger.Printf("presign output failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate download URL"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     job.ID,
		"variant":    variant,
		"object_key": outputKey,
		"url":        url,
	})
}

// handleUnlockHD is the payment collaborator's callback path: the core only
// flips the persisted flag, it never talks to a payment provider.
func (s *Server) handleUnlockHD(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	unlocked, err := s.jobStore.UnlockHD(r.Context(), job.ID)
	if err != nil {
		s.logger.Printf("unlock hd failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to unlock hd"})
		return
	}
	s.invalidateCache(r.Context(), job.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":      unlocked.ID,
		"hd_unlocked": unlocked.HDUnlocked,
	})
}

// handleDeleteJob removes both stored artifacts together with the record so
// no orphaned files outlive the job.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	for _, key := range []string{job.SourceKey, job.OutputKey, job.HDOutputKey, job.ComparisonKey} {
		if key == "" {
			continue
		}
		if err := s.storage.RemoveObject(r.Context(), key); err != nil {
			s.logger.Printf("remove artifact failed for job %s key=%s: %v", job.ID, key, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete artifacts"})
			return
		}
	}

	if err := s.jobStore.Delete(r.Context(), job.ID); err != nil {
		s.logger.Printf("delete job failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete job"})
		return
	}
	s.invalidateCache(r.Context(), job.ID)

	w.WriteHeader(http.StatusNoContent)
}

// loadOwnedJob resolves {id} for the calling identity. Jobs owned by other
// users read as not found.
func (s *Server) loadOwnedJob(w http.ResponseWriter, r *http.Request) (domain.Job, bool) {
	userID, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return domain.Job{}, false
	}

	jobID := r.PathValue("id")
	job, found, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed for job %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return domain.Job{}, false
	}
	if !found || job.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return domain.Job{}, false
	}
	return job, true
}

func (s *Server) invalidateCache(ctx context.Context, jobID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, jobID); err != nil {
		s.logger.Printf("cache invalidate failed for job %s: %v", jobID, err)
	}
}

func jobResponse(job domain.Job) map[string]any {
	resp := map[string]any{
		"job_id":      job.ID,
		"style":       job.Style,
		"status":      job.Status,
		"hd_unlocked": job.HDUnlocked,
		"created_at":  job.CreatedAt,
	}
	if job.ErrorMessage != "" {
		resp["error"] = job.ErrorMessage
	}
	if job.OutputKey != "" {
		resp["output_key"] = job.OutputKey
	}
	if job.ComparisonKey != "" {
		resp["comparison_key"] = job.ComparisonKey
	}
	if job.ProcessedAt != nil {
		resp["processed_at"] = job.ProcessedAt
	}
	return resp
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: expected RFC 3339 timestamp", name)
	}
	return parsed, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
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
