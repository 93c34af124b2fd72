package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/handler"
)

func MetricsRouter(router *gin.RouterGroup, h *handler.MetricsHandler) {
	router.GET("/pr-average", h.PRAverage)
	router.GET("/events/count", h.EventCount)
}

func VisualizationRouter(router *gin.RouterGroup, h *handler.MetricsHandler) {
	router.GET("/timeline", h.Timeline)
}

func AdminRouter(router *gin.RouterGroup, h *handler.DeadLetterHandler) {
	router.GET("/dead-letters", h.List)
}
