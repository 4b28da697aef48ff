package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minuteflow/minuteflow/internal/models"
)

// TimingRepo is the append-only diarization timing history. It satisfies
// diarization.History.
type TimingRepo interface {
	Record(ctx context.Context, audioDurationSec, processingSec float64, numSpeakers int, fileSizeBytes int64) error
	AverageRate(ctx context.Context) (float64, error)
	ListRecent(ctx context.Context, limit int) ([]models.DiarizationTiming, error)
}

type timingRepo struct {
	db *gorm.DB

	// only the most recent runs feed the average, so one slow legacy batch
	// cannot skew estimates forever
	window int
}

func NewTimingRepo(db *gorm.DB) TimingRepo {
	return &timingRepo{db: db, window: 50}
}

func (r *timingRepo) Record(ctx context.Context, audioDurationSec, processingSec float64, numSpeakers int, fileSizeBytes int64) error {
	row := &models.DiarizationTiming{
		AudioDurationSeconds:  audioDurationSec,
		ProcessingTimeSeconds: processingSec,
		NumSpeakers:           numSpeakers,
		FileSizeBytes:         fileSizeBytes,
		CreatedAt:             time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// AverageRate returns the mean processing_time/duration over the recent
// window, or 0 when no usable history exists.
func (r *timingRepo) AverageRate(ctx context.Context) (float64, error) {
	var rows []models.DiarizationTiming
	err := r.db.WithContext(ctx).
		Where("audio_duration_seconds > 0").
		Order("created_at DESC").
		Limit(r.window).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, t := range rows {
		sum += t.ProcessingTimeSeconds / t.AudioDurationSeconds
	}
	return sum / float64(len(rows)), nil
}

func (r *timingRepo) ListRecent(ctx context.Context, limit int) ([]models.DiarizationTiming, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.DiarizationTiming
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
