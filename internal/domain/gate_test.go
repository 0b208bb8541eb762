package domain

import (
	"errors"
	"testing"
)

func TestResolveOutputNotReady(t *testing.T) {
	job := Job{ID: "job-1", Status: JobStatusProcessing}
	if _, err := ResolveOutput(job, OutputStandard); !errors.Is(err, ErrOutputNotReady) {
		t.Fatalf("expected ErrOutputNotReady, got %v", err)
	}

	// Done without a stored artifact still reads as not ready.
	job = Job{ID: "job-1", Status: JobStatusDone}
	if _, err := ResolveOutput(job, OutputStandard); !errors.Is(err, ErrOutputNotReady) {
		t.Fatalf("expected ErrOutputNotReady for missing output key, got %v", err)
	}
}

func TestResolveOutputStandardAlwaysAvailable(t *testing.T) {
	job := Job{
		ID:          "job-1",
		Status:      JobStatusDone,
		OutputKey:   "outputs/job-1/standard.jpg",
		HDOutputKey: "outputs/job-1/hd.png",
	}

	for _, variant := range []string{"", OutputStandard} {
		key, err := ResolveOutput(job, variant)
		if err != nil {
			t.Fatalf("variant %q: expected standard output, got error: %v", variant, err)
		}
		if key != job.OutputKey {
			t.Fatalf("variant %q: expected %s, got %s", variant, job.OutputKey, key)
		}
	}
}

func TestResolveOutputComparison(t *testing.T) {
	job := Job{
		ID:        "job-1",
		Status:    JobStatusDone,
		OutputKey: "outputs/job-1/standard.jpg",
	}

	// Jobs processed before the comparison artifact existed have no key.
	if _, err := ResolveOutput(job, OutputComparison); !errors.Is(err, ErrOutputNotReady) {
		t.Fatalf("expected ErrOutputNotReady for missing comparison key, got %v", err)
	}

	job.ComparisonKey = "outputs/job-1/comparison.jpg"
	key, err := ResolveOutput(job, OutputComparison)
	if err != nil {
		t.Fatalf("expected comparison output, got error: %v", err)
	}
	if key != job.ComparisonKey {
		t.Fatalf("expected %s, got %s", job.ComparisonKey, key)
	}
}

func TestResolveOutputHDRequiresUnlock(t *testing.T) {
	job := Job{
		ID:          "job-1",
		Status:      JobStatusDone,
		OutputKey:   "outputs/job-1/standard.jpg",
		HDOutputKey: "outputs/job-1/hd.png",
	}

	if _, err := ResolveOutput(job, OutputHD); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired before unlock, got %v", err)
	}

	job.HDUnlocked = true
	key, err := ResolveOutput(job, OutputHD)
	if err != nil {
		t.Fatalf("expected hd output after unlock, got error: %v", err)
	}
	if key != job.HDOutputKey {
		t.Fatalf("expected %s, got %s", job.HDOutputKey, key)
	}
}

func TestResolveOutputUnknownVariant(t *testing.T) {
	job := Job{
		ID:        "job-1",
		Status:    JobStatusDone,
		OutputKey: "outputs/job-1/standard.jpg",
	}

	if _, err := ResolveOutput(job, "thumbnail"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}
