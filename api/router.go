package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulse/logger"
)

// NewRouter builds the gin engine with middleware and every route mounted.
func NewRouter(svc *Services, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Request id first so recovery and access logs can carry it.
	router.Use(RequestID())
	router.Use(Recovery(log))
	router.Use(Logger(logger.Component(log, "http")))

	SetupRoutes(router, svc, log)
	return router
}

func SetupRoutes(router *gin.Engine, svc *Services, log zerolog.Logger) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		feedback := NewFeedbackHandler(svc, log)
		fb := v1.Group("/feedback")
		fb.GET("", feedback.List)
		fb.POST("", feedback.Submit)
		fb.GET("/:id", feedback.Get)
		fb.GET("/:id/similar", feedback.Similar)

		nlpHandler := NewNLPHandler(svc, log)
		n := v1.Group("/nlp")
		n.POST("/process", nlpHandler.Process)
		n.POST("/batch-process", nlpHandler.BatchProcess)
		n.POST("/cluster", nlpHandler.Cluster)
		n.POST("/insights", nlpHandler.Insights)

		v1.GET("/analytics/metrics", NewAnalyticsHandler(svc, log).Metrics)

		clusterHandler := NewClusterHandler(svc, log)
		v1.GET("/clusters", clusterHandler.List)
		v1.POST("/clusters/run", clusterHandler.Run)

		insightHandler := NewInsightHandler(svc, log)
		v1.GET("/insights", insightHandler.List)
		v1.POST("/insights/generate", insightHandler.Generate)
		v1.PATCH("/insights/:id", insightHandler.UpdateStatus)

		reqHandler := NewRequirementHandler(svc, log)
		r := v1.Group("/requirements")
		r.GET("", reqHandler.List)
		r.POST("", reqHandler.Create)
		r.GET("/:id", reqHandler.Get)
		r.PATCH("/:id", reqHandler.Update)
		r.DELETE("/:id", reqHandler.Delete)
		r.POST("/:id/feedback", reqHandler.Link)

		expHandler := NewExperimentHandler(svc, log)
		ab := v1.Group("/ab-tests")
		ab.GET("", expHandler.List)
		ab.POST("", expHandler.Create)
		ab.GET("/:id", expHandler.Get)
		ab.PATCH("/:id", expHandler.UpdateStatus)
		ab.POST("/:id/assignments", expHandler.Assign)
	}
}
