package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minuteflow/minuteflow/internal/models"
)

type AnalysisRepository interface {
	Upsert(ctx context.Context, a *models.MeetingAnalysis) error
	GetByJob(ctx context.Context, jobID uint) (*models.MeetingAnalysis, error)
	ListRecent(ctx context.Context, limit int64) ([]models.MeetingAnalysis, error)
}

type analysisRepo struct {
	col *mongo.Collection
}

func NewAnalysisRepo(db *mongo.Database) AnalysisRepository {
	return &analysisRepo{col: db.Collection("meeting_analyses")}
}

// Upsert keeps at most one analysis document per job; a re-run replaces it.
func (r *analysisRepo) Upsert(ctx context.Context, a *models.MeetingAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"job_id": a.JobID},
		bson.M{"$set": bson.M{
			"summary":        a.Summary,
			"decisions":      a.Decisions,
			"action_items":   a.ActionItems,
			"open_questions": a.OpenQuestions,
			"language":       a.Language,
			"model":          a.Model,
			"created_at":     a.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *analysisRepo) GetByJob(ctx context.Context, jobID uint) (*models.MeetingAnalysis, error) {
	var out models.MeetingAnalysis
	err := r.col.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *analysisRepo) ListRecent(ctx context.Context, limit int64) ([]models.MeetingAnalysis, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MeetingAnalysis
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
