package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minuteflow/minuteflow/internal/models"
)

type SearchRepo interface {
	InsertLines(ctx context.Context, lines []models.TranscriptLine) error
	NearestLines(ctx context.Context, embedding []float32, limit int) ([]models.TranscriptLine, error)
	DeleteByJob(ctx context.Context, jobID uint) error
}

type searchRepo struct {
	db *gorm.DB
}

func NewSearchRepo(db *gorm.DB) SearchRepo {
	return &searchRepo{db: db}
}

func (r *searchRepo) InsertLines(ctx context.Context, lines []models.TranscriptLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *searchRepo) NearestLines(ctx context.Context, embedding []float32, limit int) ([]models.TranscriptLine, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.TranscriptLine
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding <-> ?",
			Vars:               []any{pgvector.NewVector(embedding)},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *searchRepo) DeleteByJob(ctx context.Context, jobID uint) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.TranscriptLine{}).Error
}
