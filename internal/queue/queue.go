package queue

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Job intake stream shared by the API (producer) and the pipeline workers
// (consumer group).
const (
	Stream = "jobs:stream"
	Group  = "pipeline-workers"
)

// Enqueue appends a job to the intake stream.
func Enqueue(ctx context.Context, rdb *redis.Client, jobID uint, sourceObject string) error {
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"job_id":        strconv.FormatUint(uint64(jobID), 10),
			"source_object": sourceObject,
		},
	}).Err()
}
