package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
	"github.com/dunamismax/toonforge/internal/store"
)

type memoryObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjectStorage() *memoryObjectStorage {
	return &memoryObjectStorage{objects: make(map[string][]byte)}
}

func (s *memoryObjectStorage) ReadObject(_ context.Context, objectKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, errors.New("object not found: " + objectKey)
	}
	return data, nil
}

func (s *memoryObjectStorage) WriteObject(_ context.Context, objectKey string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = data
	return nil
}

func buildSourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func seedJob(t *testing.T, jobs store.JobStore, job domain.Job) {
	t.Helper()

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job %s: %v", job.ID, err)
	}
}

func TestProcessorProducesAllArtifacts(t *testing.T) {
	storage := newMemoryObjectStorage()
	jobs := store.NewMemoryJobStore()
	storage.objects["uploads/job-1/source"] = buildSourcePNG(t, 96, 64)

	seedJob(t, jobs, domain.Job{
		ID:        "job-1",
		UserID:    "user-1",
		SourceKey: "uploads/job-1/source",
		Style:     "cartoon",
	})

	processor, err := NewProcessor(storage, jobs, Config{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	job, result, err := processor.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if job.Status != domain.JobStatusDone {
		t.Fatalf("expected done, got %s", job.Status)
	}
	if job.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}
	if result.OutputKey != "outputs/job-1/standard.jpg" {
		t.Fatalf("unexpected output key %s", result.OutputKey)
	}
	if result.HDOutputKey != "outputs/job-1/hd.png" {
		t.Fatalf("unexpected hd output key %s", result.HDOutputKey)
	}
	if result.ComparisonKey != "outputs/job-1/comparison.jpg" {
		t.Fatalf("unexpected comparison key %s", result.ComparisonKey)
	}
	if job.ComparisonKey != result.ComparisonKey {
		t.Fatalf("expected comparison key persisted, got %q", job.ComparisonKey)
	}
	if result.Width != 96 || result.Height != 64 {
		t.Fatalf("expected 96x64 output, got %dx%d", result.Width, result.Height)
	}

	standard, err := storage.ReadObject(context.Background(), result.OutputKey)
	if err != nil {
		t.Fatalf("read standard artifact: %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(standard)); err != nil || format != "jpeg" {
		t.Fatalf("expected decodable jpeg, format=%s err=%v", format, err)
	}

	hd, err := storage.ReadObject(context.Background(), result.HDOutputKey)
	if err != nil {
		t.Fatalf("read hd artifact: %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(hd)); err != nil || format != "png" {
		t.Fatalf("expected decodable png, format=%s err=%v", format, err)
	}

	// The comparison frame is the original and the result side by side with
	// a separator between them.
	comparison, err := storage.ReadObject(context.Background(), result.ComparisonKey)
	if err != nil {
		t.Fatalf("read comparison artifact: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(comparison))
	if err != nil || format != "jpeg" {
		t.Fatalf("expected decodable jpeg comparison, format=%s err=%v", format, err)
	}
	if img.Bounds().Dx() != 2*96+5 || img.Bounds().Dy() != 64 {
		t.Fatalf("expected 197x64 comparison, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestProcessorDownscalesStandardTier(t *testing.T) {
	storage := newMemoryObjectStorage()
	jobs := store.NewMemoryJobStore()
	storage.objects["uploads/job-1/source"] = buildSourcePNG(t, 320, 200)

	seedJob(t, jobs, domain.Job{
		ID:        "job-1",
		UserID:    "user-1",
		SourceKey: "uploads/job-1/source",
		Style:     "pencil_sketch",
	})

	processor, err := NewProcessor(storage, jobs, Config{
		MaxDimension:         240,
		StandardMaxDimension: 120,
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	_, result, err := processor.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// The HD artifact carries the working resolution.
	if result.Width != 240 {
		t.Fatalf("expected hd width 240, got %d", result.Width)
	}

	standard, err := storage.ReadObject(context.Background(), result.OutputKey)
	if err != nil {
		t.Fatalf("read standard artifact: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(standard))
	if err != nil {
		t.Fatalf("decode standard artifact: %v", err)
	}
	if img.Bounds().Dx() != 120 {
		t.Fatalf("expected standard width 120, got %d", img.Bounds().Dx())
	}
}

func TestProcessorMarksFailedOnUnknownStyle(t *testing.T) {
	storage := newMemoryObjectStorage()
	jobs := store.NewMemoryJobStore()

	seedJob(t, jobs, domain.Job{
		ID:        "job-1",
		UserID:    "user-1",
		SourceKey: "uploads/job-1/source",
		Style:     "vaporwave",
	})

	processor, err := NewProcessor(storage, jobs, Config{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	failed, _, err := processor.Process(context.Background(), "job-1")
	if err == nil {
		t.Fatal("expected unknown style error")
	}
	if failed.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected captured error message")
	}
}

func TestProcessorMarksFailedOnUnreadableSource(t *testing.T) {
	storage := newMemoryObjectStorage()
	jobs := store.NewMemoryJobStore()
	storage.objects["uploads/job-1/source"] = []byte("not an image")

	seedJob(t, jobs, domain.Job{
		ID:        "job-1",
		UserID:    "user-1",
		SourceKey: "uploads/job-1/source",
		Style:     "cartoon",
	})

	processor, err := NewProcessor(storage, jobs, Config{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	failed, _, err := processor.Process(context.Background(), "job-1")
	if !errors.Is(err, ErrImageRead) {
		t.Fatalf("expected ErrImageRead, got %v", err)
	}
	if failed.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
}

func TestProcessorLeavesBusyJobUntouched(t *testing.T) {
	storage := newMemoryObjectStorage()
	jobs := store.NewMemoryJobStore()
	storage.objects["uploads/job-1/source"] = buildSourcePNG(t, 32, 32)

	seedJob(t, jobs, domain.Job{
		ID:        "job-1",
		UserID:    "user-1",
		SourceKey: "uploads/job-1/source",
		Style:     "cartoon",
		Status:    domain.JobStatusProcessing,
	})

	processor, err := NewProcessor(storage, jobs, Config{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	_, _, err = processor.Process(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrJobBusy) {
		t.Fatalf("expected ErrJobBusy, got %v", err)
	}

	job, ok, _ := jobs.Get(context.Background(), "job-1")
	if !ok || job.Status != domain.JobStatusProcessing {
		t.Fatalf("expected busy job left in processing, got %s", job.Status)
	}
}

func TestProcessorMissingJob(t *testing.T) {
	processor, err := NewProcessor(newMemoryObjectStorage(), store.NewMemoryJobStore(), Config{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	_, _, err = processor.Process(context.Background(), "job-missing")
	if !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
