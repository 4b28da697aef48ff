package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event is one progress update for a job, published as JSON on the job's
// Redis channel. The API layer forwards these to websocket clients.
type Event struct {
	JobID   uint      `json:"job_id"`
	Stage   string    `json:"stage,omitempty"`
	Percent float64   `json:"percent"`
	Status  string    `json:"status"` // processing|completed|failed
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Channel names the pub/sub channel carrying a job's progress events.
func Channel(jobID uint) string {
	return fmt.Sprintf("job:%d:progress", jobID)
}

type Publisher struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewPublisher(rdb *redis.Client, log *logrus.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

// Publish is fire-and-forget: progress delivery never fails a job.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, Channel(ev.JobID), string(b)).Err(); err != nil && p.log != nil {
		p.log.WithError(err).WithField("job_id", ev.JobID).Debug("progress publish failed")
	}
}
