package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
	"github.com/dunamismax/toonforge/internal/effect"
	"github.com/dunamismax/toonforge/internal/store"
	_ "golang.org/x/image/webp"
)

// ErrImageRead marks an unreadable or corrupt source image.
var ErrImageRead = errors.New("source image unreadable")

// ObjectStorage is the slice of the storage gateway the orchestrator needs.
type ObjectStorage interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// Config is passed at construction; there is no ambient global state.
type Config struct {
	// MaxDimension caps the longer side before any style runs.
	MaxDimension int
	// StandardMaxDimension additionally caps the standard-tier artifact.
	StandardMaxDimension int
	// JPEGQuality for the standard-tier artifact.
	JPEGQuality int
	// OutputPrefix is the object-key prefix for processed artifacts.
	OutputPrefix string
}

func (c Config) withDefaults() Config {
	if c.MaxDimension <= 0 {
		c.MaxDimension = 2000
	}
	if c.StandardMaxDimension <= 0 {
		c.StandardMaxDimension = 1024
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.OutputPrefix == "" {
		c.OutputPrefix = "outputs"
	}
	return c
}

// Result reports what a successful processing attempt produced.
type Result struct {
	OutputKey       string
	HDOutputKey     string
	ComparisonKey   string
	Width           int
	Height          int
	StandardBytes   int
	HDBytes         int
	ComparisonBytes int
}

// Processor drives one job through normalize -> state transition -> effect
// pipeline -> artifact write -> terminal status. It never retries; a failed
// job stays failed until a caller re-submits it.
type Processor struct {
	storage ObjectStorage
	jobs    store.JobStore
	cfg     Config
}

func NewProcessor(storage ObjectStorage, jobs store.JobStore, cfg Config) (*Processor, error) {
	if storage == nil {
		return nil, errors.New("object storage is required")
	}
	if jobs == nil {
		return nil, errors.New("job store is required")
	}
	return &Processor{
		storage: storage,
		jobs:    jobs,
		cfg:     cfg.withDefaults(),
	}, nil
}

// Process runs a full processing attempt for the job id. A busy job returns
// domain.ErrJobBusy without touching its state; every other failure marks
// the job failed with a captured message and leaves any previously stored
// output untouched.
func (p *Processor) Process(ctx context.Context, jobID string) (domain.Job, Result, error) {
	job, ok, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.Job{}, Result{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if !ok {
		return domain.Job{}, Result{}, store.ErrJobNotFound
	}

	params, err := effect.Normalize(job.Style, job.Params)
	if err != nil {
		failed := p.fail(ctx, job.ID, err)
		return failed, Result{}, err
	}

	job, err = p.jobs.MarkProcessing(ctx, job.ID)
	if err != nil {
		// A busy or missing job belongs to another attempt; its state stays.
		return domain.Job{}, Result{}, err
	}

	result, err := p.run(ctx, job, params)
	if err != nil {
		failed := p.fail(ctx, job.ID, err)
		return failed, Result{}, err
	}

	keys := store.ArtifactKeys{
		Output:     result.OutputKey,
		HDOutput:   result.HDOutputKey,
		Comparison: result.ComparisonKey,
	}
	done, err := p.jobs.MarkDone(ctx, job.ID, keys, time.Now().UTC())
	if err != nil {
		return domain.Job{}, Result{}, fmt.Errorf("mark job %s done: %w", job.ID, err)
	}
	return done, result, nil
}

func (p *Processor) run(ctx context.Context, job domain.Job, params effect.Params) (Result, error) {
	sourceBytes, err := p.storage.ReadObject(ctx, job.SourceKey)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(sourceBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %v", ErrImageRead, job.SourceKey, err)
	}

	src := effect.ResizeIfOversized(effect.ToRGBA(decoded), p.cfg.MaxDimension)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	processed, err := effect.Apply(job.Style, src, params)
	if err != nil {
		return Result{}, err
	}

	hdData, err := encodePNG(processed)
	if err != nil {
		return Result{}, err
	}

	standard := effect.ResizeIfOversized(processed, p.cfg.StandardMaxDimension)
	standardData, err := encodeJPEG(standard, p.cfg.JPEGQuality)
	if err != nil {
		return Result{}, err
	}

	comparisonData, err := encodeJPEG(effect.SideBySide(src, processed), p.cfg.JPEGQuality)
	if err != nil {
		return Result{}, err
	}

	outputKey := path.Join(p.cfg.OutputPrefix, job.ID, "standard.jpg")
	hdOutputKey := path.Join(p.cfg.OutputPrefix, job.ID, "hd.png")
	comparisonKey := path.Join(p.cfg.OutputPrefix, job.ID, "comparison.jpg")

	if err := p.storage.WriteObject(ctx, outputKey, standardData, "image/jpeg"); err != nil {
		return Result{}, fmt.Errorf("write standard artifact: %w", err)
	}
	if err := p.storage.WriteObject(ctx, hdOutputKey, hdData, "image/png"); err != nil {
		return Result{}, fmt.Errorf("write hd artifact: %w", err)
	}
	if err := p.storage.WriteObject(ctx, comparisonKey, comparisonData, "image/jpeg"); err != nil {
		return Result{}, fmt.Errorf("write comparison artifact: %w", err)
	}

	bounds := processed.Bounds()
	return Result{
		OutputKey:       outputKey,
		HDOutputKey:     hdOutputKey,
		ComparisonKey:   comparisonKey,
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		StandardBytes:   len(standardData),
		HDBytes:         len(hdData),
		ComparisonBytes: len(comparisonData),
	}, nil
}

func (p *Processor) fail(ctx context.Context, jobID string, cause error) domain.Job {
	failed, err := p.jobs.MarkFailed(ctx, jobID, cause.Error())
	if err != nil {
		return domain.Job{}
	}
	return failed
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
