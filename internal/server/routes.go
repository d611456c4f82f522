package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labzang/sentiment-server/internal/api"
	"github.com/labzang/sentiment-server/internal/app"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Liveness endpoint, no model involved
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := s.ginEngine.Group("/api/v1/sentiment")

	apiV1.POST("/analyze", handlerWrapper(app, api.AnalyzeSentiment))
	apiV1.POST("/batch", handlerWrapper(app, api.AnalyzeBatch))
	apiV1.GET("/quick", handlerWrapper(app, api.QuickAnalyze))

	apiV1.GET("/model/info", handlerWrapper(app, api.GetModelInfo))
	apiV1.GET("/health", handlerWrapper(app, api.GetModelHealth))
	apiV1.GET("/examples", handlerWrapper(app, api.GetExamples))

	apiV1.POST("/train", handlerWrapper(app, api.StartTraining))
	apiV1.GET("/training/status", handlerWrapper(app, api.GetTrainingStatus))
	apiV1.GET("/training/runs", handlerWrapper(app, api.ListTrainingRuns))
	apiV1.GET("/training/runs/:id", handlerWrapper(app, api.GetTrainingRun))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
