package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labzang/sentiment-server/internal/app"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func respondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

func getApp(c *gin.Context) *app.App {
	return c.MustGet("app").(*app.App)
}

// AnalyzeRequest is the body of single-text analysis.
type AnalyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

// BatchRequest is the body of batch analysis.
type BatchRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// TrainRequest kicks off a fine-tuning run.
type TrainRequest struct {
	Epochs int `json:"epochs"`
}
