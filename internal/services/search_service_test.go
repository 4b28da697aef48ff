package services

import (
	"testing"

	"github.com/minuteflow/minuteflow/internal/models"
)

func TestGroupLines(t *testing.T) {
	seg := func(start float64, speaker, text string) models.TranscribedSegment {
		return models.TranscribedSegment{
			DiarizationSegment: models.DiarizationSegment{Start: start, End: start + 1, Speaker: speaker},
			Text:               text,
		}
	}

	got := groupLines([]models.TranscribedSegment{
		seg(0, "A", "hi"),
		seg(1, "A", "there"),
		seg(2, "B", ""),
		seg(3, "B", "hey"),
	})

	if len(got) != 2 {
		t.Fatalf("lines = %+v", got)
	}
	if got[0].Speaker != "A" || got[0].Content != "hi there" || got[0].StartSeconds != 0 {
		t.Fatalf("line 0 = %+v", got[0])
	}
	if got[1].Speaker != "B" || got[1].Content != "hey" || got[1].StartSeconds != 3 {
		t.Fatalf("line 1 = %+v", got[1])
	}
}
