package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(RequestLogger(log))

	// Health check and metrics
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/user/:username", handler.GetUser)
		api.POST("/analyze", handler.Analyze)
		api.GET("/status/:jobId", handler.GetStatus)
		api.GET("/report/:jobId", handler.GetReport)
		// gin cannot mix a static "latest" segment with the :jobId
		// wildcard, so the latest route shares the param slot and the
		// handler checks it
		api.GET("/report/:jobId/:username", handler.GetLatestReport)
	}

	return router
}
