package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/minuteflow/minuteflow/internal/checkpoint"
	"github.com/minuteflow/minuteflow/internal/diarization"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/progress"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/transcribe"
	"github.com/minuteflow/minuteflow/internal/utils"
)

// Progress ceiling reached when each stage completes. Within a stage the
// executor's own progress is scaled into the stage's band so the published
// percentage never moves backwards.
var stageCeiling = map[checkpoint.Stage]float64{
	checkpoint.StageConversion:    25,
	checkpoint.StageDiarization:   50,
	checkpoint.StageTranscription: 75,
	checkpoint.StageAnalysis:      100,
}

const defaultAnalysisPrompt = `You are a meeting analyst. Given a meeting transcript, respond with JSON:
{"summary": "...", "decisions": ["..."], "action_items": [{"owner": "...", "task": "...", "due": "..."}], "open_questions": ["..."]}`

type mediaConverter interface {
	ConvertToWAV(ctx context.Context, srcPath, outDir string) (string, error)
	Duration(ctx context.Context, path string) (float64, error)
}

type diarizationRunner interface {
	Run(ctx context.Context, audioPath string, fileDurationSec float64, fileSizeBytes int64, numSpeakers int, baseFloor float64, onProgress diarization.ProgressFunc) (*diarization.Result, error)
}

type transcriptionEngine interface {
	TranscribeSegments(ctx context.Context, audioPath string, segments []models.DiarizationSegment, language string, onProgress transcribe.ProgressFunc) (*transcribe.Output, error)
}

type progressSink interface {
	Publish(ctx context.Context, ev progress.Event)
}

type analysisStore interface {
	Upsert(ctx context.Context, a *models.MeetingAnalysis) error
}

type searchIndexer interface {
	IndexTranscript(ctx context.Context, jobID uint, segments []models.TranscribedSegment) error
}

// Orchestrator sequences conversion, diarization, transcription and
// analysis for one job, checkpointing each stage and resuming past
// completed ones. Stages run synchronously; parallelism lives inside the
// transcription engine and the diarization poller.
type Orchestrator struct {
	Jobs        pgrepo.JobRepo
	Checkpoints *checkpoint.Manager
	Media       mediaConverter
	Diarization diarizationRunner
	Engine      transcriptionEngine
	LLM         llm.Provider
	Analyses    analysisStore
	Search      searchIndexer
	Progress    progressSink
	Log         *logrus.Logger

	ScratchDir     string
	AnalysisPrompt string
	ModelName      string
}

// Process runs the job end to end. resume controls whether valid
// checkpoints are trusted; a fresh submission passes false so stale state
// from an id reuse cannot leak in.
func (o *Orchestrator) Process(ctx context.Context, jobID uint, sourcePath string, resume bool) error {
	const op = "Orchestrator.Process"

	log := o.Log.WithFields(logrus.Fields{"job_id": jobID, "resume": resume})

	job, err := o.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if resume && job.HasTranscription() {
		log.Info("job already has a durable transcription, nothing to resume")
		return nil
	}

	if err := o.Jobs.UpdateStatus(ctx, jobID, models.JobProcessing); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to mark job processing", err)
	}

	run := &jobRun{o: o, jobID: jobID, resume: resume, log: log}

	conv, err := run.conversion(ctx, sourcePath)
	if err != nil {
		return run.fail(ctx, checkpoint.StageConversion, err)
	}

	diar, err := run.diarization(ctx, conv, job.FileSize)
	if err != nil {
		return run.fail(ctx, checkpoint.StageDiarization, err)
	}

	tr, err := run.transcription(ctx, conv, diar)
	if err != nil {
		return run.fail(ctx, checkpoint.StageTranscription, err)
	}

	analysis, err := run.analysis(ctx, tr)
	if err != nil {
		return run.fail(ctx, checkpoint.StageAnalysis, err)
	}

	if err := run.persist(ctx, diar, tr, analysis); err != nil {
		return run.fail(ctx, checkpoint.StageAnalysis, err)
	}

	run.emit(ctx, checkpoint.StageAnalysis, 100, "completed", "")
	log.Info("job completed")
	return nil
}

type jobRun struct {
	o      *Orchestrator
	jobID  uint
	resume bool
	log    *logrus.Entry
}

func (r *jobRun) emit(ctx context.Context, stage checkpoint.Stage, percent float64, status, msg string) {
	if r.o.Progress == nil {
		return
	}
	r.o.Progress.Publish(ctx, progress.Event{
		JobID:   r.jobID,
		Stage:   string(stage),
		Percent: percent,
		Status:  status,
		Message: msg,
	})
}

// band scales an executor's local 0-100 progress into [floor, ceiling) of
// the global scale.
func band(stage checkpoint.Stage, localPct float64) float64 {
	ceil := stageCeiling[stage]
	floor := ceil - 25
	if localPct > 100 {
		localPct = 100
	}
	return floor + localPct/100*(ceil-floor-1)
}

func (r *jobRun) skip(stage checkpoint.Stage, dst any) bool {
	if !r.resume || !r.o.Checkpoints.Validate(r.jobID, stage) {
		return false
	}
	ok, err := r.o.Checkpoints.Load(r.jobID, stage, dst)
	if err != nil || !ok {
		return false
	}
	r.log.WithField("stage", stage).Info("stage restored from checkpoint")
	return true
}

func (r *jobRun) save(stage checkpoint.Stage, payload any, extra map[string]string) error {
	if err := r.o.Checkpoints.Save(r.jobID, stage, payload, extra); err != nil {
		return fmt.Errorf("save %s checkpoint: %w", stage, err)
	}
	return nil
}

func (r *jobRun) conversion(ctx context.Context, sourcePath string) (*checkpoint.ConversionOutput, error) {
	var out checkpoint.ConversionOutput
	if r.skip(checkpoint.StageConversion, &out) {
		r.emit(ctx, checkpoint.StageConversion, stageCeiling[checkpoint.StageConversion], "processing", "restored")
		return &out, nil
	}

	dur, err := r.o.Media.Duration(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}
	r.emit(ctx, checkpoint.StageConversion, band(checkpoint.StageConversion, 30), "processing", "")

	audioPath, err := r.o.Media.ConvertToWAV(ctx, sourcePath, r.o.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	out = checkpoint.ConversionOutput{AudioPath: audioPath, DurationSeconds: dur, SampleRateHz: 16000}
	if err := r.save(checkpoint.StageConversion, &out, nil); err != nil {
		return nil, err
	}
	r.emit(ctx, checkpoint.StageConversion, stageCeiling[checkpoint.StageConversion], "processing", "")
	return &out, nil
}

func (r *jobRun) diarization(ctx context.Context, conv *checkpoint.ConversionOutput, fileSize int64) (*checkpoint.DiarizationOutput, error) {
	var out checkpoint.DiarizationOutput
	if r.skip(checkpoint.StageDiarization, &out) {
		r.emit(ctx, checkpoint.StageDiarization, stageCeiling[checkpoint.StageDiarization], "processing", "restored")
		return &out, nil
	}

	res, err := r.o.Diarization.Run(ctx, conv.AudioPath, conv.DurationSeconds, fileSize, 0, 0,
		func(localPct float64) {
			r.emit(ctx, checkpoint.StageDiarization, band(checkpoint.StageDiarization, localPct), "processing", "")
		})
	if err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}

	out = checkpoint.DiarizationOutput{
		Segments:     res.Segments,
		SpeakerCount: res.SpeakerCount,
		Degraded:     res.Degraded,
	}
	if err := r.save(checkpoint.StageDiarization, &out, map[string]string{
		"processing_seconds": fmt.Sprintf("%.1f", res.ProcessingTime),
	}); err != nil {
		return nil, err
	}
	r.emit(ctx, checkpoint.StageDiarization, stageCeiling[checkpoint.StageDiarization], "processing", "")
	return &out, nil
}

func (r *jobRun) transcription(ctx context.Context, conv *checkpoint.ConversionOutput, diar *checkpoint.DiarizationOutput) (*checkpoint.TranscriptionOutput, error) {
	var out checkpoint.TranscriptionOutput
	if r.skip(checkpoint.StageTranscription, &out) {
		r.emit(ctx, checkpoint.StageTranscription, stageCeiling[checkpoint.StageTranscription], "processing", "restored")
		return &out, nil
	}

	res, err := r.o.Engine.TranscribeSegments(ctx, conv.AudioPath, diar.Segments, "",
		func(done, total int) {
			if total == 0 {
				return
			}
			r.emit(ctx, checkpoint.StageTranscription, band(checkpoint.StageTranscription, float64(done)/float64(total)*100), "processing", "")
		})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if res.Transcript == "" {
		return nil, fmt.Errorf("transcribe: empty transcript (%d of %d segments failed)", res.Failed, len(diar.Segments))
	}

	out = checkpoint.TranscriptionOutput{
		Transcript: res.Transcript,
		Language:   res.Language,
		Segments:   res.Segments,
	}
	if err := r.save(checkpoint.StageTranscription, &out, map[string]string{
		"failed_segments": fmt.Sprintf("%d", res.Failed),
	}); err != nil {
		return nil, err
	}
	r.emit(ctx, checkpoint.StageTranscription, stageCeiling[checkpoint.StageTranscription], "processing", "")
	return &out, nil
}

func (r *jobRun) analysis(ctx context.Context, tr *checkpoint.TranscriptionOutput) (*checkpoint.AnalysisOutput, error) {
	var out checkpoint.AnalysisOutput
	if r.skip(checkpoint.StageAnalysis, &out) {
		return &out, nil
	}

	prompt := r.o.AnalysisPrompt
	if prompt == "" {
		prompt = defaultAnalysisPrompt
	}

	a, err := r.o.LLM.Analyze(ctx, tr.Transcript, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	out = checkpoint.AnalysisOutput{Analysis: *a}
	if err := r.save(checkpoint.StageAnalysis, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *jobRun) persist(ctx context.Context, diar *checkpoint.DiarizationOutput, tr *checkpoint.TranscriptionOutput, an *checkpoint.AnalysisOutput) error {
	analysisJSON, err := json.Marshal(an.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	if err := r.o.Jobs.SaveResult(ctx, r.jobID, tr.Transcript, tr.Language, diar.SpeakerCount, datatypes.JSON(analysisJSON)); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	if r.o.Analyses != nil {
		doc := &models.MeetingAnalysis{
			JobID:         r.jobID,
			Summary:       an.Analysis.Summary,
			Decisions:     an.Analysis.Decisions,
			ActionItems:   an.Analysis.ActionItems,
			OpenQuestions: an.Analysis.OpenQuestions,
			Language:      tr.Language,
			Model:         r.o.ModelName,
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.o.Analyses.Upsert(ctx, doc); err != nil {
			// the relational row is authoritative; the document copy is
			// best-effort
			r.log.WithError(err).Warn("analysis document upsert failed")
		}
	}

	if r.o.Search != nil {
		if err := r.o.Search.IndexTranscript(ctx, r.jobID, tr.Segments); err != nil {
			r.log.WithError(err).Warn("transcript search indexing failed")
		}
	}

	// durable record now holds the result; checkpoints are spent
	if err := r.o.Checkpoints.Clear(r.jobID); err != nil {
		r.log.WithError(err).Warn("checkpoint cleanup failed")
	}
	return nil
}

// fail marks the job failed with structured detail, leaving checkpoints in
// place for a later resume. No further stages run.
func (r *jobRun) fail(ctx context.Context, stage checkpoint.Stage, cause error) error {
	r.log.WithField("stage", stage).WithError(cause).Error("stage failed, job aborted")

	detail, _ := json.Marshal(map[string]string{
		"stage": string(stage),
		"error": cause.Error(),
		"at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err := r.o.Jobs.SetError(ctx, r.jobID, datatypes.JSON(detail)); err != nil {
		r.log.WithError(err).Error("failed to persist job failure")
	}

	r.emit(ctx, stage, stageCeiling[stage]-25, "failed", cause.Error())
	return utils.E(utils.CodeInternal, "Orchestrator.Process", fmt.Sprintf("stage %s failed", stage), cause)
}
