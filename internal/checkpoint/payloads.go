package checkpoint

import (
	"errors"

	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
)

// Each stage persists a typed payload rather than an opaque blob, so a
// resumed process can validate more than "file is non-empty". Validation
// cannot detect byte-level corruption from a crash mid-write; a payload
// that fails to decode or validate is treated as absent.

type ConversionOutput struct {
	AudioPath       string  `json:"audio_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRateHz    int     `json:"sample_rate_hz"`
}

func (o *ConversionOutput) Validate() error {
	if o.AudioPath == "" {
		return errors.New("conversion: missing audio path")
	}
	if o.DurationSeconds <= 0 {
		return errors.New("conversion: non-positive duration")
	}
	return nil
}

type DiarizationOutput struct {
	Segments     []models.DiarizationSegment `json:"segments"`
	SpeakerCount int                         `json:"speaker_count"`
	Degraded     bool                        `json:"degraded,omitempty"` // single-speaker fallback
}

func (o *DiarizationOutput) Validate() error {
	if len(o.Segments) == 0 {
		return errors.New("diarization: no segments")
	}
	for _, s := range o.Segments {
		if s.End < s.Start {
			return errors.New("diarization: segment end before start")
		}
	}
	return nil
}

type TranscriptionOutput struct {
	Transcript string                      `json:"transcript"`
	Language   string                      `json:"language"`
	Segments   []models.TranscribedSegment `json:"segments,omitempty"`
}

func (o *TranscriptionOutput) Validate() error {
	if o.Transcript == "" {
		return errors.New("transcription: empty transcript")
	}
	return nil
}

type AnalysisOutput struct {
	Analysis llm.Analysis `json:"analysis"`
}

func (o *AnalysisOutput) Validate() error {
	if o.Analysis.Summary == "" {
		return errors.New("analysis: empty summary")
	}
	return nil
}

type validator interface{ Validate() error }

func newPayload(stage Stage) validator {
	switch stage {
	case StageConversion:
		return &ConversionOutput{}
	case StageDiarization:
		return &DiarizationOutput{}
	case StageTranscription:
		return &TranscriptionOutput{}
	case StageAnalysis:
		return &AnalysisOutput{}
	default:
		return nil
	}
}
