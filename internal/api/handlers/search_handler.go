package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/minuteflow/minuteflow/internal/services"
	"github.com/minuteflow/minuteflow/internal/utils"
)

type SearchHandler struct {
	svc services.SearchService
}

func NewSearchHandler(svc services.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search runs a semantic query over indexed transcript lines.
func (h *SearchHandler) Search(c *gin.Context) {
	const op = "SearchHandler.Search"

	query := c.Query("q")
	if query == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "query parameter 'q' is required", nil))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	lines, err := h.svc.Search(c.Request.Context(), query, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": lines})
}
