package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/minuteflow/minuteflow/internal/checkpoint"
	"github.com/minuteflow/minuteflow/internal/diarization"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/progress"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	"github.com/minuteflow/minuteflow/internal/transcribe"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[uint]*models.Job
}

func newFakeJobs(ids ...uint) *fakeJobs {
	f := &fakeJobs{jobs: make(map[uint]*models.Job)}
	for _, id := range ids {
		f.jobs[id] = &models.Job{ID: id, Status: models.JobPending, FileSize: 1024}
	}
	return f
}

func (f *fakeJobs) Create(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) UpdateStatus(ctx context.Context, id uint, status models.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = status
	return nil
}

func (f *fakeJobs) SaveResult(ctx context.Context, id uint, transcript, language string, speakerCount int, analysis datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = models.JobCompleted
	j.Transcription = &transcript
	j.Language = language
	j.SpeakerCount = speakerCount
	j.Analysis = analysis
	return nil
}

func (f *fakeJobs) SetError(ctx context.Context, id uint, detail datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = models.JobFailed
	f.jobs[id].ErrorDetail = detail
	return nil
}

func (f *fakeJobs) SetSourceDigest(ctx context.Context, id uint, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].SourceDigest = digest
	return nil
}

func (f *fakeJobs) ListRecent(ctx context.Context, limit int) ([]models.Job, error) {
	return nil, nil
}

type fakeMedia struct{ converts, probes int }

func (f *fakeMedia) ConvertToWAV(ctx context.Context, src, outDir string) (string, error) {
	f.converts++
	return "/scratch/conv_16k.wav", nil
}

func (f *fakeMedia) Duration(ctx context.Context, path string) (float64, error) {
	f.probes++
	return 120, nil
}

type fakeDiarization struct {
	runs int
	res  *diarization.Result
}

func (f *fakeDiarization) Run(ctx context.Context, audioPath string, dur float64, size int64, numSpeakers int, baseFloor float64, onProgress diarization.ProgressFunc) (*diarization.Result, error) {
	f.runs++
	if onProgress != nil {
		onProgress(40)
		onProgress(100)
	}
	return f.res, nil
}

type fakeEngine struct {
	runs int
	out  *transcribe.Output
	err  error
}

func (f *fakeEngine) TranscribeSegments(ctx context.Context, audioPath string, segments []models.DiarizationSegment, language string, onProgress transcribe.ProgressFunc) (*transcribe.Output, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	if onProgress != nil {
		onProgress(len(segments), len(segments))
	}
	return f.out, nil
}

type fakeLLM struct {
	analyzes int
	err      error
}

func (f *fakeLLM) Analyze(ctx context.Context, transcript, systemPrompt string) (*llm.Analysis, error) {
	f.analyzes++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Analysis{Summary: "a short meeting", Decisions: []string{"ship it"}}, nil
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error) {
	return "", nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *fakeLLM) Close() error                                              { return nil }

type fakeSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (f *fakeSink) Publish(ctx context.Context, ev progress.Event) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func testOrchestrator(t *testing.T, jobs *fakeJobs) (*Orchestrator, *fakeMedia, *fakeDiarization, *fakeEngine, *fakeLLM, *fakeSink) {
	t.Helper()

	cm, err := checkpoint.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	media := &fakeMedia{}
	diar := &fakeDiarization{res: &diarization.Result{
		Segments: []models.DiarizationSegment{
			{Start: 0, End: 60, Speaker: "SPEAKER_00"},
			{Start: 60, End: 120, Speaker: "SPEAKER_01"},
		},
		SpeakerCount: 2,
	}}
	eng := &fakeEngine{out: &transcribe.Output{
		Transcript: "SPEAKER_00: hello\nSPEAKER_01: hi",
		Language:   "en-US",
		Segments: []models.TranscribedSegment{
			{DiarizationSegment: models.DiarizationSegment{Start: 0, End: 60, Speaker: "SPEAKER_00"}, Text: "hello"},
			{DiarizationSegment: models.DiarizationSegment{Start: 60, End: 120, Speaker: "SPEAKER_01"}, Text: "hi"},
		},
	}}
	model := &fakeLLM{}
	sink := &fakeSink{}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return &Orchestrator{
		Jobs:        jobs,
		Checkpoints: cm,
		Media:       media,
		Diarization: diar,
		Engine:      eng,
		LLM:         model,
		Progress:    sink,
		Log:         log,
		ScratchDir:  t.TempDir(),
	}, media, diar, eng, model, sink
}

func TestProcessHappyPath(t *testing.T) {
	jobs := newFakeJobs(1)
	o, media, diar, eng, model, sink := testOrchestrator(t, jobs)

	if err := o.Process(context.Background(), 1, "/uploads/meeting.mp4", false); err != nil {
		t.Fatal(err)
	}

	job, _ := jobs.GetJob(context.Background(), 1)
	if job.Status != models.JobCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	if !job.HasTranscription() || job.Language != "en-US" || job.SpeakerCount != 2 {
		t.Fatalf("result not persisted: %+v", job)
	}
	if media.converts != 1 || diar.runs != 1 || eng.runs != 1 || model.analyzes != 1 {
		t.Fatalf("stage executions: %d/%d/%d/%d", media.converts, diar.runs, eng.runs, model.analyzes)
	}

	// checkpoints cleared after the durable record holds the result
	if got := o.Checkpoints.ListCompleted(1); len(got) != 0 {
		t.Fatalf("checkpoints not cleared: %v", got)
	}

	// published progress never decreases and ends at exactly 100
	var prev float64 = -1
	for _, ev := range sink.events {
		if ev.Percent < prev {
			t.Fatalf("published progress decreased: %+v", sink.events)
		}
		prev = ev.Percent
	}
	last := sink.events[len(sink.events)-1]
	if last.Percent != 100 || last.Status != "completed" {
		t.Fatalf("final event = %+v", last)
	}
}

func TestProcessResumeSkipsCompletedStages(t *testing.T) {
	jobs := newFakeJobs(2)
	o, media, diar, eng, model, _ := testOrchestrator(t, jobs)

	// completed conversion and diarization checkpoints from a prior run
	if err := o.Checkpoints.Save(2, checkpoint.StageConversion, &checkpoint.ConversionOutput{
		AudioPath: "/scratch/conv_16k.wav", DurationSeconds: 120, SampleRateHz: 16000,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if err := o.Checkpoints.Save(2, checkpoint.StageDiarization, &checkpoint.DiarizationOutput{
		Segments:     []models.DiarizationSegment{{Start: 0, End: 120, Speaker: "SPEAKER_00"}},
		SpeakerCount: 1,
	}, nil); err != nil {
		t.Fatal(err)
	}

	if err := o.Process(context.Background(), 2, "/uploads/meeting.mp4", true); err != nil {
		t.Fatal(err)
	}

	if media.converts != 0 || diar.runs != 0 {
		t.Fatalf("resumed stages re-executed: converts=%d diarize=%d", media.converts, diar.runs)
	}
	if eng.runs != 1 || model.analyzes != 1 {
		t.Fatalf("remaining stages skipped: engine=%d analyze=%d", eng.runs, model.analyzes)
	}

	job, _ := jobs.GetJob(context.Background(), 2)
	if job.Status != models.JobCompleted || job.SpeakerCount != 1 {
		t.Fatalf("job = %+v", job)
	}
}

func TestProcessNoResumeNeededWithDurableTranscript(t *testing.T) {
	jobs := newFakeJobs(3)
	tr := "SPEAKER_00: already done"
	jobs.jobs[3].Transcription = &tr

	o, media, _, eng, _, _ := testOrchestrator(t, jobs)

	if err := o.Process(context.Background(), 3, "/uploads/meeting.mp4", true); err != nil {
		t.Fatal(err)
	}
	if media.probes != 0 || eng.runs != 0 {
		t.Fatal("work executed despite durable transcription")
	}
}

func TestProcessStageFailureMarksJobAndKeepsCheckpoints(t *testing.T) {
	jobs := newFakeJobs(4)
	o, _, _, eng, model, sink := testOrchestrator(t, jobs)
	eng.err = errors.New("speech backend unreachable")

	err := o.Process(context.Background(), 4, "/uploads/meeting.mp4", false)
	if err == nil {
		t.Fatal("expected error")
	}

	job, _ := jobs.GetJob(context.Background(), 4)
	if job.Status != models.JobFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if len(job.ErrorDetail) == 0 {
		t.Fatal("no structured error detail persisted")
	}
	if model.analyzes != 0 {
		t.Fatal("analysis ran after transcription failure")
	}

	// earlier checkpoints survive for a future resume
	got := o.Checkpoints.ListCompleted(4)
	if len(got) != 2 || got[0] != checkpoint.StageConversion || got[1] != checkpoint.StageDiarization {
		t.Fatalf("checkpoints = %v", got)
	}

	last := sink.events[len(sink.events)-1]
	if last.Status != "failed" {
		t.Fatalf("final event = %+v", last)
	}
}
