package transcribe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/stt"
)

type fakeExtractor struct{}

func (fakeExtractor) ExtractClip(ctx context.Context, src string, start, dur float64, out string) error {
	return os.WriteFile(out, []byte("clip"), 0o644)
}

// fakeTranscriber returns text derived from the clip's segment start so
// tests can verify ordering. failStarts forces per-task failures.
type fakeTranscriber struct {
	calls     int32
	resultFor func(clipPath string) stt.Result
	fail      func(clipPath string) bool
}

func (f *fakeTranscriber) TranscribeClip(ctx context.Context, clipPath, language string) (stt.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail != nil && f.fail(clipPath) {
		return stt.Result{}, errors.New("model exploded")
	}
	if f.resultFor != nil {
		return f.resultFor(clipPath), nil
	}
	return stt.Result{Text: "ok", Language: "en-US"}, nil
}

func (f *fakeTranscriber) Close() error { return nil }

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	if err := os.WriteFile(path, []byte("pretend wav bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clip paths embed the segment index: clip_<idx>_<nanos>.wav
func clipIndex(clipPath string) int {
	var idx, nanos int
	fmt.Sscanf(filepath.Base(clipPath), "clip_%d_%d.wav", &idx, &nanos)
	return idx
}

func TestAssembleGroupsConsecutiveSpeakers(t *testing.T) {
	segs := []models.TranscribedSegment{
		{DiarizationSegment: models.DiarizationSegment{Start: 0, End: 1, Speaker: "A"}, Text: "hi"},
		{DiarizationSegment: models.DiarizationSegment{Start: 1, End: 2, Speaker: "A"}, Text: "there"},
		{DiarizationSegment: models.DiarizationSegment{Start: 2, End: 3, Speaker: "B"}, Text: "hey"},
	}
	if got := Assemble(segs); got != "A: hi there\nB: hey" {
		t.Fatalf("Assemble = %q", got)
	}
}

func TestAssembleSortsByStartAndDropsEmpty(t *testing.T) {
	segs := []models.TranscribedSegment{
		{DiarizationSegment: models.DiarizationSegment{Start: 2, End: 3, Speaker: "B"}, Text: "hey"},
		{DiarizationSegment: models.DiarizationSegment{Start: 0.5, End: 0.55, Speaker: "C"}, Text: ""},
		{DiarizationSegment: models.DiarizationSegment{Start: 1, End: 2, Speaker: "A"}, Text: "there"},
		{DiarizationSegment: models.DiarizationSegment{Start: 0, End: 1, Speaker: "A"}, Text: "hi"},
	}
	if got := Assemble(segs); got != "A: hi there\nB: hey" {
		t.Fatalf("Assemble = %q (empty segment must never become a bare line)", got)
	}
}

func TestDominantLanguagePluralityAndTieBreak(t *testing.T) {
	mk := func(start float64, lang string) models.TranscribedSegment {
		return models.TranscribedSegment{
			DiarizationSegment: models.DiarizationSegment{Start: start, End: start + 1, Speaker: "A"},
			Text:               "x",
			Language:           lang,
		}
	}

	segs := []models.TranscribedSegment{mk(0, "en-US"), mk(1, "de-DE"), mk(2, "en-US")}
	if got := DominantLanguage(segs); got != "en-US" {
		t.Fatalf("plurality = %q", got)
	}

	// tie: first-seen language wins
	segs = []models.TranscribedSegment{mk(0, "de-DE"), mk(1, "en-US")}
	if got := DominantLanguage(segs); got != "de-DE" {
		t.Fatalf("tie-break = %q", got)
	}
}

func TestEngineRestoresTimeOrder(t *testing.T) {
	texts := []string{"zero", "one", "two", "three", "four", "five"}

	ft := &fakeTranscriber{
		resultFor: func(clipPath string) stt.Result {
			return stt.Result{Text: texts[clipIndex(clipPath)], Language: "en-US"}
		},
	}
	e := &Engine{Transcriber: ft, Extractor: fakeExtractor{}, Workers: 3, ScratchDir: t.TempDir()}

	segs := make([]models.DiarizationSegment, len(texts))
	for i := range texts {
		segs[i] = models.DiarizationSegment{Start: float64(i), End: float64(i) + 1, Speaker: fmt.Sprintf("S%d", i)}
	}
	rand.Shuffle(len(segs), func(i, j int) { segs[i], segs[j] = segs[j], segs[i] })

	// clip index still tracks the shuffled position, so map text by start
	ft.resultFor = func(clipPath string) stt.Result {
		idx := clipIndex(clipPath)
		return stt.Result{Text: texts[int(segs[idx].Start)], Language: "en-US"}
	}

	out, err := e.TranscribeSegments(context.Background(), writeAudio(t), segs, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(out.Segments); i++ {
		if out.Segments[i].Start < out.Segments[i-1].Start {
			t.Fatalf("segments out of order: %+v", out.Segments)
		}
	}
	want := "S0: zero\nS1: one\nS2: two\nS3: three\nS4: four\nS5: five"
	if out.Transcript != want {
		t.Fatalf("transcript = %q, want %q", out.Transcript, want)
	}
}

func TestEngineSkipsDegenerateSegments(t *testing.T) {
	ft := &fakeTranscriber{resultFor: func(string) stt.Result {
		return stt.Result{Text: "spoken", Language: "en-US"}
	}}
	e := &Engine{Transcriber: ft, Extractor: fakeExtractor{}, ScratchDir: t.TempDir()}

	segs := []models.DiarizationSegment{
		{Start: 0, End: 1, Speaker: "A"},
		{Start: 1, End: 1.05, Speaker: "B"}, // below the 0.1s floor
	}
	out, err := e.TranscribeSegments(context.Background(), writeAudio(t), segs, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt32(&ft.calls) != 1 {
		t.Fatalf("model calls = %d, want 1 (degenerate segment must not hit the model)", ft.calls)
	}
	if out.Transcript != "A: spoken" {
		t.Fatalf("transcript = %q", out.Transcript)
	}
}

func TestEnginePartialFailureKeepsBatch(t *testing.T) {
	ft := &fakeTranscriber{
		resultFor: func(clipPath string) stt.Result {
			return stt.Result{Text: fmt.Sprintf("part%d", clipIndex(clipPath)), Language: "en-US"}
		},
		fail: func(clipPath string) bool { return clipIndex(clipPath) == 1 },
	}
	e := &Engine{Transcriber: ft, Extractor: fakeExtractor{}, ScratchDir: t.TempDir()}

	segs := []models.DiarizationSegment{
		{Start: 0, End: 1, Speaker: "A"},
		{Start: 1, End: 2, Speaker: "B"},
		{Start: 2, End: 3, Speaker: "C"},
	}

	var progress []int
	out, err := e.TranscribeSegments(context.Background(), writeAudio(t), segs, "", func(done, total int) {
		progress = append(progress, done)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if out.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", out.Failed)
	}
	if out.Transcript != "A: part0\nC: part2" {
		t.Fatalf("transcript = %q", out.Transcript)
	}
	if len(progress) != 3 {
		t.Fatalf("progress fired %d times, want 3 (failures report too)", len(progress))
	}
}

func TestEngineSecondCallServedFromCache(t *testing.T) {
	ft := &fakeTranscriber{resultFor: func(string) stt.Result {
		return stt.Result{Text: "hello", Language: "en-US"}
	}}
	e := &Engine{
		Transcriber: ft,
		Extractor:   fakeExtractor{},
		Cache:       cache.NewMemory(),
		ScratchDir:  t.TempDir(),
	}

	audio := writeAudio(t)
	segs := []models.DiarizationSegment{{Start: 0, End: 1, Speaker: "A"}}

	first, err := e.TranscribeSegments(context.Background(), audio, segs, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	fired := 0
	second, err := e.TranscribeSegments(context.Background(), audio, segs, "", func(done, total int) { fired++ })
	if err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt32(&ft.calls) != 1 {
		t.Fatalf("model calls = %d, want 1 (second call must be cached)", ft.calls)
	}
	if fired != 0 {
		t.Fatal("progress callbacks fired on cached replay")
	}
	if first.Transcript != second.Transcript {
		t.Fatalf("cached output differs: %q vs %q", first.Transcript, second.Transcript)
	}
}
