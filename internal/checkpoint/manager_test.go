package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minuteflow/minuteflow/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func saveConversion(t *testing.T, m *Manager, jobID uint) {
	t.Helper()
	err := m.Save(jobID, StageConversion, &ConversionOutput{
		AudioPath:       "/scratch/a_16k.wav",
		DurationSeconds: 90,
		SampleRateHz:    16000,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func saveDiarization(t *testing.T, m *Manager, jobID uint) {
	t.Helper()
	err := m.Save(jobID, StageDiarization, &DiarizationOutput{
		Segments: []models.DiarizationSegment{
			{Start: 0, End: 45, Speaker: "SPEAKER_00"},
			{Start: 45, End: 90, Speaker: "SPEAKER_01"},
		},
		SpeakerCount: 2,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	saveDiarization(t, m, 7)

	var out DiarizationOutput
	ok, err := m.Load(7, StageDiarization, &out)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(out.Segments) != 2 || out.SpeakerCount != 2 {
		t.Fatalf("payload mismatch: %+v", out)
	}

	if !m.Has(7, StageDiarization) || m.Has(7, StageTranscription) {
		t.Fatal("Has reports wrong stages")
	}
}

func TestSaveOverwrites(t *testing.T) {
	m := newTestManager(t)
	saveConversion(t, m, 3)

	err := m.Save(3, StageConversion, &ConversionOutput{AudioPath: "/scratch/b.wav", DurationSeconds: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out ConversionOutput
	if ok, _ := m.Load(3, StageConversion, &out); !ok || out.AudioPath != "/scratch/b.wav" {
		t.Fatalf("re-save did not overwrite: %+v", out)
	}
}

func TestValidateRejectsCorruptAndDegenerate(t *testing.T) {
	m := newTestManager(t)

	// missing
	if m.Validate(1, StageTranscription) {
		t.Fatal("missing checkpoint validated")
	}

	// degenerate: empty transcript
	if err := m.Save(1, StageTranscription, &TranscriptionOutput{Transcript: ""}, nil); err != nil {
		t.Fatal(err)
	}
	if m.Validate(1, StageTranscription) {
		t.Fatal("empty transcript validated")
	}

	// corrupt bytes on disk
	path := filepath.Join(m.jobDir(1), string(StageDiarization)+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if m.Validate(1, StageDiarization) {
		t.Fatal("corrupt checkpoint validated")
	}
}

func TestListCompletedOrderAndClear(t *testing.T) {
	m := newTestManager(t)
	saveDiarization(t, m, 9)
	saveConversion(t, m, 9)

	got := m.ListCompleted(9)
	if len(got) != 2 || got[0] != StageConversion || got[1] != StageDiarization {
		t.Fatalf("ListCompleted = %v", got)
	}

	if err := m.Clear(9); err != nil {
		t.Fatal(err)
	}
	if got := m.ListCompleted(9); len(got) != 0 {
		t.Fatalf("Clear left %v", got)
	}
}

type fakeJobStore struct {
	job *models.Job
	err error
}

func (f *fakeJobStore) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	return f.job, f.err
}

func TestResumePoint(t *testing.T) {
	ctx := context.Background()

	t.Run("midway", func(t *testing.T) {
		m := newTestManager(t)
		saveConversion(t, m, 5)
		saveDiarization(t, m, 5)

		stage, needed := m.ResumePoint(ctx, &fakeJobStore{job: &models.Job{ID: 5}}, 5)
		if !needed || stage != StageTranscription {
			t.Fatalf("got (%v, %v), want (transcription, true)", stage, needed)
		}
	})

	t.Run("durable transcription wins", func(t *testing.T) {
		m := newTestManager(t)
		saveConversion(t, m, 5)
		saveDiarization(t, m, 5)

		tr := "A: hi"
		_, needed := m.ResumePoint(ctx, &fakeJobStore{job: &models.Job{ID: 5, Transcription: &tr}}, 5)
		if needed {
			t.Fatal("resume reported needed despite durable transcription")
		}
	})

	t.Run("no checkpoints", func(t *testing.T) {
		m := newTestManager(t)
		stage, needed := m.ResumePoint(ctx, &fakeJobStore{job: &models.Job{ID: 5}}, 5)
		if !needed || stage != StageConversion {
			t.Fatalf("got (%v, %v), want (conversion, true)", stage, needed)
		}
	})

	t.Run("broken durable state starts over", func(t *testing.T) {
		m := newTestManager(t)
		stage, needed := m.ResumePoint(ctx, &fakeJobStore{err: errors.New("db down")}, 5)
		if !needed || stage != StageConversion {
			t.Fatalf("got (%v, %v), want (conversion, true)", stage, needed)
		}
	})
}
