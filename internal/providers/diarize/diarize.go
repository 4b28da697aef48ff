package diarize

import (
	"context"

	"github.com/minuteflow/minuteflow/internal/models"
)

// Diarizer partitions a recording into speaker-labeled time ranges. The
// model is opaque and long-running; callers own retries and fallback.
type Diarizer interface {
	// Diarize blocks until the model returns. numSpeakers <= 0 lets the
	// model pick.
	Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]models.DiarizationSegment, error)

	// ClearGPUCache best-effort frees device memory between attempts.
	ClearGPUCache(ctx context.Context) error

	Close() error
}
