package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/minuteflow/minuteflow/config"
	"github.com/minuteflow/minuteflow/internal/api/handlers"
	"github.com/minuteflow/minuteflow/internal/api/middleware"
	"github.com/minuteflow/minuteflow/internal/api/routes"
	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/logger"
	"github.com/minuteflow/minuteflow/internal/models"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	mongorepo "github.com/minuteflow/minuteflow/internal/repositories/mongo"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/retry"
	"github.com/minuteflow/minuteflow/internal/services"
	"github.com/minuteflow/minuteflow/internal/storage"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx := context.Background()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
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

	store, err := storage.NewGCSStore(ctx, os.Getenv("GCS_BUCKET"))
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer store.Close()

	provider, err := buildLLM(ctx)
	if err != nil {
		log.Fatalf("LLM init error: %v", err)
	}
	defer provider.Close()

	jobs := pgrepo.NewJobRepo(config.PostgresDB)
	lines := pgrepo.NewSearchRepo(config.PostgresDB)
	analyses := mongorepo.NewAnalysisRepo(config.MongoDatabase())

	meetings := services.NewMeetingService(jobs, analyses, store, config.RedisClient, provider)
	search := services.NewSearchService(lines, provider)

	resultCache := cache.NewMemory()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Meeting: handlers.NewMeetingHandler(meetings),
		Search:  handlers.NewSearchHandler(search),
		Cache:   handlers.NewCacheHandler(resultCache),
		WS:      handlers.NewWSHandler(meetings, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	l.WithField("port", port).Info("server listening")
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildLLM wires the primary Gemini model with an optional fallback model
// behind the API retry policy.
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
