package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/utils"
)

type SearchService interface {
	// IndexTranscript replaces the job's searchable lines with freshly
	// embedded ones. Called by the pipeline after a job completes.
	IndexTranscript(ctx context.Context, jobID uint, segments []models.TranscribedSegment) error
	Search(ctx context.Context, query string, limit int) ([]models.TranscriptLine, error)
}

type searchService struct {
	lines pgrepo.SearchRepo
	llm   llm.Provider
}

func NewSearchService(lines pgrepo.SearchRepo, provider llm.Provider) SearchService {
	return &searchService{lines: lines, llm: provider}
}

func (s *searchService) IndexTranscript(ctx context.Context, jobID uint, segments []models.TranscribedSegment) error {
	const op = "SearchService.IndexTranscript"

	grouped := groupLines(segments)
	if len(grouped) == 0 {
		return nil
	}

	rows := make([]models.TranscriptLine, 0, len(grouped))
	for _, g := range grouped {
		emb, err := s.llm.Embed(ctx, g.Content)
		if err != nil {
			return utils.E(utils.CodeUnavailable, op, "embedding failed", err)
		}
		g.ID = uuid.NewString()
		g.JobID = jobID
		g.CreatedAt = time.Now().UTC()
		if len(emb) > 0 {
			g.Embedding = pgvector.NewVector(emb)
		}
		rows = append(rows, g)
	}

	if err := s.lines.DeleteByJob(ctx, jobID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to drop stale lines", err)
	}
	if err := s.lines.InsertLines(ctx, rows); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert lines", err)
	}
	return nil
}

func (s *searchService) Search(ctx context.Context, query string, limit int) ([]models.TranscriptLine, error) {
	const op = "SearchService.Search"

	if strings.TrimSpace(query) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}

	emb, err := s.llm.Embed(ctx, query)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "embedding failed", err)
	}

	rows, err := s.lines.NearestLines(ctx, emb, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "search query failed", err)
	}
	return rows, nil
}

// groupLines merges consecutive same-speaker segments, mirroring the final
// transcript's line structure but keeping each line's start time.
func groupLines(segments []models.TranscribedSegment) []models.TranscriptLine {
	var out []models.TranscriptLine
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Speaker == seg.Speaker {
			out[n-1].Content += " " + text
			continue
		}
		out = append(out, models.TranscriptLine{
			Speaker:      seg.Speaker,
			Content:      text,
			StartSeconds: seg.Start,
		})
	}
	return out
}
