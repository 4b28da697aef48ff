package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/minuteflow/minuteflow/internal/providers/llm"
	"github.com/minuteflow/minuteflow/internal/services"
	"github.com/minuteflow/minuteflow/internal/utils"
)

type MeetingHandler struct {
	svc services.MeetingService
}

func NewMeetingHandler(svc services.MeetingService) *MeetingHandler {
	return &MeetingHandler{svc: svc}
}

type SubmitMeetingResponse struct {
	JobID  uint   `json:"job_id"`
	Status string `json:"status"`
}

// Submit accepts a multipart upload under the "file" field and enqueues the
// job for processing.
func (h *MeetingHandler) Submit(c *gin.Context) {
	const op = "MeetingHandler.Submit"

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "multipart field 'file' is required", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer f.Close()

	job, err := h.svc.Submit(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitMeetingResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

func (h *MeetingHandler) Get(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *MeetingHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *MeetingHandler) Analysis(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	analysis, err := h.svc.Analysis(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

type ChatRequest struct {
	Messages []llm.Message `json:"messages" binding:"required"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat answers a follow-up question grounded on the job's transcript.
func (h *MeetingHandler) Chat(c *gin.Context) {
	const op = "MeetingHandler.Chat"

	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "messages must not be empty", nil))
		return
	}

	reply, err := h.svc.Chat(c.Request.Context(), id, req.Messages)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}
