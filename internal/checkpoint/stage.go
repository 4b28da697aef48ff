package checkpoint

// Stage is one discrete step of the processing pipeline, in fixed order.
type Stage string

const (
	StageConversion    Stage = "conversion"
	StageDiarization   Stage = "diarization"
	StageTranscription Stage = "transcription"
	StageAnalysis      Stage = "analysis"
)

// StageOrder is the total order stages execute in.
var StageOrder = []Stage{StageConversion, StageDiarization, StageTranscription, StageAnalysis}

func stageIndex(s Stage) int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}
