package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/minuteflow/minuteflow/internal/api/handlers"
)

type Deps struct {
	Meeting *handlers.MeetingHandler
	Search  *handlers.SearchHandler
	Cache   *handlers.CacheHandler
	WS      *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")

	v1.POST("/meetings", d.Meeting.Submit)
	v1.GET("/meetings", d.Meeting.List)
	v1.GET("/meetings/:id", d.Meeting.Get)
	v1.GET("/meetings/:id/analysis", d.Meeting.Analysis)
	v1.POST("/meetings/:id/chat", d.Meeting.Chat)

	v1.GET("/search", d.Search.Search)

	v1.GET("/cache/stats", d.Cache.Stats)
	v1.POST("/cache/clear", d.Cache.Clear)

	// WebSocket
	r.GET("/ws/jobs/:id/progress", d.WS.JobProgressWS)
}
