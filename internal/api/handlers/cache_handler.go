package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minuteflow/minuteflow/internal/cache"
	"github.com/minuteflow/minuteflow/internal/utils"
)

type CacheHandler struct {
	cache *cache.Memory
}

func NewCacheHandler(c *cache.Memory) *CacheHandler {
	return &CacheHandler{cache: c}
}

func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// Clear evicts every entry under the given key prefix.
func (h *CacheHandler) Clear(c *gin.Context) {
	const op = "CacheHandler.Clear"

	prefix := c.Query("prefix")
	if prefix == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "query parameter 'prefix' is required", nil))
		return
	}

	removed := h.cache.Clear(prefix)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
