package models

// DiarizationSegment is one speaker turn produced by the diarization model.
// Ordering by Start is not guaranteed by the model and is imposed before
// transcript assembly.
type DiarizationSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

func (s DiarizationSegment) Duration() float64 { return s.End - s.Start }

// TranscribedSegment extends a speaker turn with its recognized text and
// detected language.
type TranscribedSegment struct {
	DiarizationSegment
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}
