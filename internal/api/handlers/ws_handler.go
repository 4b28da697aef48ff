package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/minuteflow/minuteflow/internal/progress"
	"github.com/minuteflow/minuteflow/internal/services"
)

type WSHandler struct {
	meetings services.MeetingService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(meetings services.MeetingService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		meetings: meetings,
		redis:    rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// JobProgressWS streams a job's progress events over a websocket. The client
// first receives a snapshot of the job's current state, then live events
// forwarded from pub/sub until the job reaches a terminal status or the
// client disconnects.
func (h *WSHandler) JobProgressWS(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.meetings.Get(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// snapshot before subscribing so the client is never blind
	snapshot, _ := json.Marshal(progress.Event{
		JobID:   job.ID,
		Percent: terminalPercent(string(job.Status)),
		Status:  string(job.Status),
		At:      time.Now().UTC(),
	})
	if werr := wc.writeText(snapshot); werr != nil {
		return
	}
	if job.Status == "completed" || job.Status == "failed" {
		return
	}

	pubsub := h.redis.Subscribe(ctx, progress.Channel(jobID))
	defer pubsub.Close()

	// reader: drain client messages so pings and close frames are handled
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}

			var ev progress.Event
			if json.Unmarshal([]byte(m.Payload), &ev) == nil &&
				(ev.Status == "completed" || ev.Status == "failed") {
				return
			}
		}
	}
}

func terminalPercent(status string) float64 {
	if status == "completed" {
		return 100
	}
	return 0
}
