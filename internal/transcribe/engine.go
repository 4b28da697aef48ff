package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/stt"
)

const (
	// minimum clip length fed to extraction; prevents zero-length clips
	defaultMinSliceSec = 0.2
	// below this a segment is short-circuited to empty text, no model call
	defaultSkipBelowSec = 0.1

	defaultWorkers = 4

	resultTTL = 6 * time.Hour
)

// ProgressFunc receives (completed, total) after every task resolves,
// success or failure.
type ProgressFunc func(done, total int)

type clipExtractor interface {
	ExtractClip(ctx context.Context, srcPath string, start, duration float64, outPath string) error
}

// Engine extracts one clip per diarized segment and transcribes the clips
// on a bounded worker pool. Per-task failures reduce completeness but never
// abort the batch.
type Engine struct {
	Transcriber stt.Transcriber
	Extractor   clipExtractor
	Cache       *cache.Memory
	Log         *logrus.Logger

	Workers      int
	MinSliceSec  float64
	SkipBelowSec float64
	ScratchDir   string
}

// Output is the reassembled result of one batch.
type Output struct {
	Transcript string                      `json:"transcript"`
	Language   string                      `json:"language"`
	Segments   []models.TranscribedSegment `json:"segments"`
	Failed     int                         `json:"failed"`
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return defaultWorkers
}

func (e *Engine) minSlice() float64 {
	if e.MinSliceSec > 0 {
		return e.MinSliceSec
	}
	return defaultMinSliceSec
}

func (e *Engine) skipBelow() float64 {
	if e.SkipBelowSec > 0 {
		return e.SkipBelowSec
	}
	return defaultSkipBelowSec
}

// TranscribeSegments runs the whole batch. The result is memoized on
// (file digest, segment set, language): an identical second call returns
// the cached output without invoking the model or firing onProgress.
func (e *Engine) TranscribeSegments(ctx context.Context, audioPath string, segments []models.DiarizationSegment, language string, onProgress ProgressFunc) (*Output, error) {
	if e.Cache == nil {
		return e.run(ctx, audioPath, segments, language, onProgress)
	}

	digest, err := cache.FileDigest(audioPath)
	if err != nil {
		return nil, err
	}
	key := cache.Key("transcribe", "TranscribeSegments", digest, segmentFingerprint(segments), language)

	v, hit, err := e.Cache.GetOrCompute(key, resultTTL, func() (any, error) {
		return e.run(ctx, audioPath, segments, language, onProgress)
	})
	if err != nil {
		return nil, err
	}
	if hit && e.Log != nil {
		e.Log.WithField("digest", digest).Debug("transcription served from cache")
	}
	return v.(*Output), nil
}

func (e *Engine) run(ctx context.Context, audioPath string, segments []models.DiarizationSegment, language string, onProgress ProgressFunc) (*Output, error) {
	scratch := e.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}

	total := len(segments)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []models.TranscribedSegment
		failed  int
		done    int
	)

	report := func() {
		mu.Lock()
		done++
		d := done
		mu.Unlock()
		if onProgress != nil {
			onProgress(d, total)
		}
	}

	sem := make(chan struct{}, e.workers())
	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg models.DiarizationSegment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer report()

			res, err := e.transcribeOne(ctx, audioPath, i, seg, language, scratch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if e.Log != nil {
					e.Log.WithFields(logrus.Fields{
						"segment": i,
						"start":   seg.Start,
						"end":     seg.End,
					}).WithError(err).Warn("segment transcription failed")
				}
				return
			}
			if res.Text != "" {
				results = append(results, res)
			}
		}(i, seg)
	}
	wg.Wait()

	// completion order is not time order
	sort.Slice(results, func(a, b int) bool { return results[a].Start < results[b].Start })

	return &Output{
		Transcript: Assemble(results),
		Language:   DominantLanguage(results),
		Segments:   results,
		Failed:     failed,
	}, nil
}

func (e *Engine) transcribeOne(ctx context.Context, audioPath string, idx int, seg models.DiarizationSegment, language, scratch string) (models.TranscribedSegment, error) {
	out := models.TranscribedSegment{DiarizationSegment: seg}

	if seg.Duration() < e.skipBelow() {
		return out, nil
	}

	clipDur := seg.Duration()
	if clipDur < e.minSlice() {
		clipDur = e.minSlice()
	}

	clipPath := filepath.Join(scratch, fmt.Sprintf("clip_%d_%d.wav", idx, time.Now().UnixNano()))
	if err := e.Extractor.ExtractClip(ctx, audioPath, seg.Start, clipDur, clipPath); err != nil {
		return out, err
	}
	// the clip is scratch data either way
	defer os.Remove(clipPath)

	res, err := e.Transcriber.TranscribeClip(ctx, clipPath, language)
	if err != nil {
		return out, err
	}

	out.Text = res.Text
	out.Language = res.Language
	return out, nil
}

func segmentFingerprint(segments []models.DiarizationSegment) string {
	h := ""
	for _, s := range segments {
		h += fmt.Sprintf("%.3f-%.3f-%s;", s.Start, s.End, s.Speaker)
	}
	return h
}
