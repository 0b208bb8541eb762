package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentRequired = errors.New("hd output requires payment unlock")
	ErrOutputNotReady  = errors.New("job output is not ready")
	ErrUnknownVariant  = errors.New("unknown output variant")
)

// Output variants a done job can serve.
const (
	OutputStandard   = "standard"
	OutputHD         = "hd"
	OutputComparison = "comparison"
)

// ResolveOutput picks the stored artifact to serve. The standard and
// comparison artifacts are always available once the job is done; the HD
// artifact only after the payment collaborator has set the unlock flag. The
// flag is monotonic and is never reset here.
func ResolveOutput(job Job, variant string) (string, error) {
	if job.Status != JobStatusDone || job.OutputKey == "" {
		return "", ErrOutputNotReady
	}

	switch variant {
	case "", OutputStandard:
		return job.OutputKey, nil
	case OutputComparison:
		if job.ComparisonKey == "" {
			return "", ErrOutputNotReady
		}
		return job.ComparisonKey, nil
	case OutputHD:
		if !job.HDUnlocked {
			return "", ErrPaymentRequired
		}
		return job.HDOutputKey, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
}