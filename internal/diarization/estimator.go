package diarization

import (
	"sync"
	"time"
)

const (
	// multiplier applied when no timing history exists yet
	conservativeRate = 2.0
	// estimate used when even the audio duration is unknown
	fallbackEstimateSec = 120.0
	// progress never passes this until the model call actually returns
	progressCeiling = 95.0
)

// EstimateTotal predicts diarization wall-clock seconds. avgRate is the
// historical mean of processing_time/duration; zero means no history.
func EstimateTotal(avgRate, audioDurationSec float64) float64 {
	if audioDurationSec <= 0 {
		return fallbackEstimateSec
	}
	if avgRate > 0 {
		return audioDurationSec * avgRate
	}
	return audioDurationSec * conservativeRate
}

// Tracker turns elapsed wall-clock time into a capped, monotonic progress
// percentage while a blocking model call runs. 100 is reserved for true
// completion via Complete.
type Tracker struct {
	mu        sync.Mutex
	started   time.Time
	estimated float64
	baseFloor float64
	last      float64

	now func() time.Time
}

func NewTracker(estimatedSec, baseFloor float64) *Tracker {
	t := &Tracker{
		estimated: estimatedSec,
		baseFloor: baseFloor,
		now:       time.Now,
	}
	t.started = t.now()
	return t
}

// Percent reports current progress: the elapsed fraction of the estimate,
// floored at the stage-relative base the orchestrator supplies, capped at
// 95, and never lower than a previous report.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	pct := t.baseFloor
	if t.estimated > 0 {
		elapsed := t.now().Sub(t.started).Seconds()
		if p := elapsed / t.estimated * 100; p > pct {
			pct = p
		}
	}
	if pct > progressCeiling {
		pct = progressCeiling
	}
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	return pct
}

// Complete marks the true end of the call and reports exactly 100.
func (t *Tracker) Complete() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 100
	return 100
}
