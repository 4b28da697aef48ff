package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	"github.com/minuteflow/minuteflow/internal/queue"
	mongorepo "github.com/minuteflow/minuteflow/internal/repositories/mongo"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/storage"
	"github.com/minuteflow/minuteflow/internal/utils"
)

const chatPromptTemplate = `You are an assistant answering questions about one meeting.
Ground every answer in the transcript below; say so when the transcript does not contain the answer.

Transcript:
%s`

type MeetingService interface {
	Submit(ctx context.Context, fileName, mimeType string, fileSize int64, r io.Reader) (*models.Job, error)
	Get(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, limit int) ([]models.Job, error)
	Analysis(ctx context.Context, jobID uint) (*models.MeetingAnalysis, error)
	Chat(ctx context.Context, jobID uint, messages []llm.Message) (string, error)
}

type meetingService struct {
	jobs     pgrepo.JobRepo
	analyses mongorepo.AnalysisRepository
	store    storage.Uploader
	rdb      *redis.Client
	llm      llm.Provider
}

func NewMeetingService(jobs pgrepo.JobRepo, analyses mongorepo.AnalysisRepository, store storage.Uploader, rdb *redis.Client, provider llm.Provider) MeetingService {
	return &meetingService{jobs: jobs, analyses: analyses, store: store, rdb: rdb, llm: provider}
}

// Submit stores the upload, creates the durable job record, and enqueues it
// for the pipeline workers.
func (s *meetingService) Submit(ctx context.Context, fileName, mimeType string, fileSize int64, r io.Reader) (*models.Job, error) {
	const op = "MeetingService.Submit"

	if fileName == "" || r == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file_name and body are required", nil)
	}

	objectName := uuid.NewString() + filepath.Ext(fileName)
	if _, err := s.store.Upload(ctx, objectName, mimeType, r); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store upload", err)
	}

	job := &models.Job{
		FileName:     fileName,
		SourceObject: objectName,
		FileSize:     fileSize,
		MimeType:     mimeType,
		Status:       models.JobPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create job", err)
	}

	if err := queue.Enqueue(ctx, s.rdb, job.ID, objectName); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue job", err)
	}
	return job, nil
}

func (s *meetingService) Get(ctx context.Context, id uint) (*models.Job, error) {
	const op = "MeetingService.Get"

	job, err := s.jobs.GetJob(ctx, id)
	if err == utils.ErrNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	return job, nil
}

func (s *meetingService) List(ctx context.Context, limit int) ([]models.Job, error) {
	const op = "MeetingService.List"

	rows, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list jobs", err)
	}
	return rows, nil
}

func (s *meetingService) Analysis(ctx context.Context, jobID uint) (*models.MeetingAnalysis, error) {
	const op = "MeetingService.Analysis"

	doc, err := s.analyses.GetByJob(ctx, jobID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load analysis", err)
	}
	if doc == nil {
		return nil, utils.E(utils.CodeNotFound, op, "no analysis for job", nil)
	}
	return doc, nil
}

// Chat answers a question about one completed meeting, grounding the model
// on its transcript.
func (s *meetingService) Chat(ctx context.Context, jobID uint, messages []llm.Message) (string, error) {
	const op = "MeetingService.Chat"

	if len(messages) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "messages are required", nil)
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !job.HasTranscription() {
		return "", utils.E(utils.CodeConflict, op, "meeting is not transcribed yet", nil)
	}

	answer, err := s.llm.Chat(ctx, messages, fmt.Sprintf(chatPromptTemplate, *job.Transcription))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "chat provider failed", err)
	}
	return answer, nil
}
