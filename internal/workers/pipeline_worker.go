package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/checkpoint"
	"github.com/minuteflow/minuteflow/internal/pipeline"
	"github.com/minuteflow/minuteflow/internal/queue"
	pgrepo "github.com/minuteflow/minuteflow/internal/repositories/postgres"
	"github.com/minuteflow/minuteflow/internal/storage"
)

// PipelineWorkerPool consumes the job intake stream and runs each job through
// the processing pipeline. Messages are acknowledged after handling either
// way: a failed job is persisted as failed by the orchestrator, so redelivery
// would only repeat the same failure.
type PipelineWorkerPool struct {
	Redis        *redis.Client
	Jobs         pgrepo.JobRepo
	Checkpoints  *checkpoint.Manager
	Orchestrator *pipeline.Orchestrator
	Store        storage.Downloader
	NumWorkers   int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	// ScratchDir holds the downloaded source files while a job is being
	// processed. Defaults to os.TempDir().
	ScratchDir string
}

func (p *PipelineWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Jobs == nil || p.Checkpoints == nil || p.Orchestrator == nil || p.Store == nil {
		return errors.New("PipelineWorkerPool missing dependency: Redis/Jobs/Checkpoints/Orchestrator/Store must be set")
	}
	if p.Stream == "" {
		p.Stream = queue.Stream
	}
	if p.Group == "" {
		p.Group = queue.Group
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "pw"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.ScratchDir == "" {
		p.ScratchDir = os.TempDir()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *PipelineWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *PipelineWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	jobIDStr := getStr("job_id")
	sourceObject := getStr("source_object")
	if jobIDStr == "" || sourceObject == "" {
		return
	}
	jobID64, err := strconv.ParseUint(jobIDStr, 10, 64)
	if err != nil {
		return
	}
	jobID := uint(jobID64)

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":      msg.ID,
		"job_id":        jobID,
		"source_object": sourceObject,
	})

	resumeStage, needed := p.Checkpoints.ResumePoint(ctx, p.Jobs, jobID)
	if !needed {
		log.Info("job already has a durable transcript, skipping")
		return
	}
	resume := resumeStage != checkpoint.StageConversion

	sourcePath := filepath.Join(p.ScratchDir, "job_"+jobIDStr+filepath.Ext(sourceObject))
	if err := p.Store.Download(ctx, sourceObject, sourcePath); err != nil {
		log.WithError(err).Error("source download failed")
		return
	}
	defer os.Remove(sourcePath)

	if digest, err := cache.FileDigest(sourcePath); err == nil {
		if err := p.Jobs.SetSourceDigest(ctx, jobID, digest); err != nil {
			log.WithError(err).Warn("failed to record source digest")
		}
	} else {
		log.WithError(err).Warn("failed to digest source file")
	}

	start := time.Now()
	if err := p.Orchestrator.Process(ctx, jobID, sourcePath, resume); err != nil {
		log.WithError(err).WithField("duration", time.Since(start).String()).Error("pipeline failed")
		return
	}
	log.WithField("duration", time.Since(start).String()).Info("pipeline completed")
}
