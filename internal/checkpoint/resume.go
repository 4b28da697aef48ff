package checkpoint

import (
	"context"

	"github.com/minuteflow/minuteflow/internal/models"
)

// JobStore is the durable job record consulted when deciding whether any
// work remains. The job row, not the checkpoint tree, decides completion.
type JobStore interface {
	GetJob(ctx context.Context, id uint) (*models.Job, error)
}

// ResumePoint reconciles checkpoints against the durable job record and
// returns the stage to execute next. needed is false when the job already
// has a persisted transcription, regardless of checkpoint state.
//
// Missing or unreadable durable state is treated as "start from the
// beginning", never as an error: losing a resume optimization must not
// fail the job.
func (m *Manager) ResumePoint(ctx context.Context, jobs JobStore, jobID uint) (stage Stage, needed bool) {
	if jobs != nil {
		job, err := jobs.GetJob(ctx, jobID)
		if err == nil && job.HasTranscription() {
			return "", false
		}
	}

	completed := m.ListCompleted(jobID)
	if len(completed) == 0 {
		return StageConversion, true
	}

	highest := completed[len(completed)-1]
	idx := stageIndex(highest)
	if idx < 0 || idx+1 >= len(StageOrder) {
		// every stage checkpointed but the durable record never saw the
		// result; replay the final stage from its checkpoint and persist
		return StageOrder[len(StageOrder)-1], true
	}
	return StageOrder[idx+1], true
}
