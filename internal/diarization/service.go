package diarization

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/diarize"
	"github.com/minuteflow/minuteflow/internal/retry"
)

// FallbackSpeaker labels the whole-file pseudo-segment used when the
// diarization model fails outright.
const FallbackSpeaker = "SPEAKER_00"

const defaultPollInterval = 1500 * time.Millisecond

// History is the append-only timing store feeding future estimates.
type History interface {
	Record(ctx context.Context, audioDurationSec, processingSec float64, numSpeakers int, fileSizeBytes int64) error
	AverageRate(ctx context.Context) (float64, error) // 0 = no history yet
}

// Result is the outcome of one diarization run.
type Result struct {
	Segments       []models.DiarizationSegment
	SpeakerCount   int
	Degraded       bool // single-speaker fallback after model failure
	ProcessingTime float64
}

// Service runs the blocking diarization model on a background goroutine so
// the caller's goroutine can poll estimated progress. Model failure retries
// under the GPU policy, then degrades to a single whole-file segment; the
// pipeline never aborts on diarization alone.
type Service struct {
	Diarizer     diarize.Diarizer
	History      History
	Log          *logrus.Logger
	PollInterval time.Duration

	// Policy defaults to retry.GPUPolicy when nil.
	Policy *retry.Policy

	// test hook
	now func() time.Time
}

func NewService(d diarize.Diarizer, history History, log *logrus.Logger) *Service {
	return &Service{
		Diarizer:     d,
		History:      history,
		Log:          log,
		PollInterval: defaultPollInterval,
		now:          time.Now,
	}
}

// ProgressFunc receives percentage updates (capped at 95 until completion,
// exactly 100 at the end).
type ProgressFunc func(percent float64)

// Run diarizes audioPath. baseFloor is the orchestrator's stage-relative
// progress floor. Only context cancellation returns an error; model failure
// degrades instead.
func (s *Service) Run(ctx context.Context, audioPath string, fileDurationSec float64, fileSizeBytes int64, numSpeakers int, baseFloor float64, onProgress ProgressFunc) (*Result, error) {
	avgRate := 0.0
	if s.History != nil {
		if r, err := s.History.AverageRate(ctx); err == nil {
			avgRate = r
		} else if s.Log != nil {
			s.Log.WithError(err).Warn("timing history unavailable, using conservative estimate")
		}
	}

	tracker := NewTracker(EstimateTotal(avgRate, fileDurationSec), baseFloor)
	started := s.now()

	policy := s.Policy
	if policy == nil {
		policy = retry.GPUPolicy(retry.ClassifyGPU)
	}
	policy.Log = s.Log
	policy.OnRetry = func(attempt int, err error) {
		// free device memory before the next attempt
		s.clearGPUCache(ctx)
	}

	type outcome struct {
		segments []models.DiarizationSegment
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		var segs []models.DiarizationSegment
		err := policy.Do(ctx, func() error {
			var derr error
			segs, derr = s.Diarizer.Diarize(ctx, audioPath, numSpeakers)
			return derr
		})
		done <- outcome{segments: segs, err: err}
	}()

	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var out outcome
poll:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case out = <-done:
			break poll
		case <-ticker.C:
			if onProgress != nil {
				onProgress(tracker.Percent())
			}
		}
	}

	processing := s.now().Sub(started).Seconds()

	if out.err != nil {
		if s.Log != nil {
			s.Log.WithError(out.err).Error("diarization failed, degrading to single speaker")
		}
		// best-effort bookkeeping; neither call may mask the model error
		s.recordTiming(ctx, fileDurationSec, processing, 1, fileSizeBytes)
		s.clearGPUCache(ctx)

		if onProgress != nil {
			onProgress(tracker.Complete())
		}
		return &Result{
			Segments:       []models.DiarizationSegment{{Start: 0, End: fileDurationSec, Speaker: FallbackSpeaker}},
			SpeakerCount:   1,
			Degraded:       true,
			ProcessingTime: processing,
		}, nil
	}

	speakers := countSpeakers(out.segments)
	s.recordTiming(ctx, fileDurationSec, processing, speakers, fileSizeBytes)

	if onProgress != nil {
		onProgress(tracker.Complete())
	}
	return &Result{
		Segments:       out.segments,
		SpeakerCount:   speakers,
		ProcessingTime: processing,
	}, nil
}

func (s *Service) recordTiming(ctx context.Context, duration, processing float64, speakers int, fileSize int64) {
	if s.History == nil {
		return
	}
	if err := s.History.Record(ctx, duration, processing, speakers, fileSize); err != nil && s.Log != nil {
		s.Log.WithError(err).Warn("failed to persist diarization timing")
	}
}

func (s *Service) clearGPUCache(ctx context.Context) {
	if err := s.Diarizer.ClearGPUCache(ctx); err != nil && s.Log != nil {
		s.Log.WithError(err).Debug("gpu cache clear failed")
	}
}

func countSpeakers(segments []models.DiarizationSegment) int {
	seen := make(map[string]struct{})
	for _, s := range segments {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
