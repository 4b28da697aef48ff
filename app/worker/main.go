package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/minuteflow/minuteflow/config"
	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/checkpoint"
	"github.com/minuteflow/minuteflow/internal/diarization"
	"github.com/minuteflow/minuteflow/internal/logger"
	"github.com/minuteflow/minuteflow/internal/media"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/pipeline"
	"github.com/minuteflow/minuteflow/internal/progress"
	"github.com/minuteflow/minuteflow/internal/providers/diarize"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	"github.com/minuteflow/minuteflow/internal/providers/stt"
	mongorepo "github.com/minuteflow/minuteflow/internal/repositories/mongo"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/retry"
	"github.com/minuteflow/minuteflow/internal/services"
	"github.com/minuteflow/minuteflow/internal/storage"
	"github.com/minuteflow/minuteflow/internal/transcribe"
	"github.com/minuteflow/minuteflow/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}

	if err := config.PostgresDB.AutoMigrate(
		&models.Job{},
		&models.DiarizationTiming{},
		&models.TranscriptLine{},
	); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	scratchDir := os.Getenv("SCRATCH_DIR")
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	checkpointDir := os.Getenv("CHECKPOINT_DIR")
	if checkpointDir == "" {
		checkpointDir = filepath.Join(scratchDir, "checkpoints")
	}
	checkpoints, err := checkpoint.NewManager(checkpointDir, l)
	if err != nil {
		log.Fatalf("checkpoint init error: %v", err)
	}

	store, err := storage.NewGCSStore(ctx, os.Getenv("GCS_BUCKET"))
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer store.Close()

	transcriber, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Speech init error: %v", err)
	}
	defer transcriber.Close()

	provider, err := buildLLM(ctx)
	if err != nil {
		log.Fatalf("LLM init error: %v", err)
	}
	defer provider.Close()

	jobs := pgrepo.NewJobRepo(config.PostgresDB)
	timings := pgrepo.NewTimingRepo(config.PostgresDB)
	lines := pgrepo.NewSearchRepo(config.PostgresDB)
	analyses := mongorepo.NewAnalysisRepo(config.MongoDatabase())

	diarizer := diarize.NewHTTPDiarizer(os.Getenv("DIARIZER_URL"), os.Getenv("DIARIZER_TOKEN"))
	tool := media.NewTool(l)
	resultCache := cache.NewMemory()

	engine := &transcribe.Engine{
		Transcriber: transcriber,
		Extractor:   tool,
		Cache:       resultCache,
		Log:         l,
		ScratchDir:  scratchDir,
	}

	orchestrator := &pipeline.Orchestrator{
		Jobs:        jobs,
		Checkpoints: checkpoints,
		Media:       tool,
		Diarization: diarization.NewService(diarizer, timings, l),
		Engine:      engine,
		LLM:         provider,
		Analyses:    analyses,
		Search:      services.NewSearchService(lines, provider),
		Progress:    progress.NewPublisher(config.RedisClient, l),
		Log:         l,
		ScratchDir:  scratchDir,
		ModelName:   os.Getenv("GEMINI_MODEL"),
	}

	numWorkers, _ := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	pool := &workers.PipelineWorkerPool{
		Redis:        config.RedisClient,
		Jobs:         jobs,
		Checkpoints:  checkpoints,
		Orchestrator: orchestrator,
		Store:        store,
		NumWorkers:   numWorkers,
		Logger:       l,
		ScratchDir:   scratchDir,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("worker pool error: %v", err)
	}

	l.Info("pipeline workers started")
	<-ctx.Done()
	l.Info("shutting down")
}

func buildLLM(ctx context.Context) (llm.Provider, error) {
	project := os.Getenv("VERTEX_PROJECT_ID")
	location := os.Getenv("VERTEX_LOCATION")
	if location == "" {
		location = "us-central1"
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-1.5-pro"
	}
	embedding := os.Getenv("GEMINI_EMBEDDING_MODEL")
	if embedding == "" {
		embedding = "text-embedding-004"
	}

	primary, err := llm.NewVertexGemini(ctx, project, location, model, embedding)
	if err != nil {
		return nil, err
	}

	fallbackModel := os.Getenv("GEMINI_FALLBACK_MODEL")
	if fallbackModel == "" {
		return primary, nil
	}
	secondary, err := llm.NewVertexGemini(ctx, project, location, fallbackModel, embedding)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return llm.NewFailover(primary, secondary, retry.APIPolicy(retry.ClassifyAPI)), nil
}
