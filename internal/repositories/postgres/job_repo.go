package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/utils"
)

type JobRepo interface {
	Create(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uint, status models.JobStatus) error
	SaveResult(ctx context.Context, id uint, transcript, language string, speakerCount int, analysis datatypes.JSON) error
	SetError(ctx context.Context, id uint, detail datatypes.JSON) error
	SetSourceDigest(ctx context.Context, id uint, digest string) error
	ListRecent(ctx context.Context, limit int) ([]models.Job, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var row models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *jobRepo) UpdateStatus(ctx context.Context, id uint, status models.JobStatus) error {
	updates := map[string]any{"status": status}
	switch status {
	case models.JobProcessing:
		updates["started_at"] = time.Now().UTC()
	case models.JobCompleted, models.JobFailed:
		updates["completed_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(updates).Error
}

func (r *jobRepo) SaveResult(ctx context.Context, id uint, transcript, language string, speakerCount int, analysis datatypes.JSON) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":        models.JobCompleted,
		"transcription": transcript,
		"language":      language,
		"speaker_count": speakerCount,
		"analysis":      analysis,
		"completed_at":  now,
	}).Error
}

func (r *jobRepo) SetError(ctx context.Context, id uint, detail datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":       models.JobFailed,
		"error_detail": detail,
		"completed_at": time.Now().UTC(),
	}).Error
}

func (r *jobRepo) SetSourceDigest(ctx context.Context, id uint, digest string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).
		Update("source_digest", digest).Error
}

func (r *jobRepo) ListRecent(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Job
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
