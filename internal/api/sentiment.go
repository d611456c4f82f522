package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labzang/sentiment-server/internal/services/sentiment"
)

// AnalyzeSentiment classifies a single text.
func AnalyzeSentiment(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "text is required")
		return
	}

	result, err := getApp(c).Sentiment.Predict(c.Request.Context(), req.Text)
	if err != nil {
		respondPredictError(c, err)
		return
	}
	respondOK(c, result)
}

// AnalyzeBatch classifies up to the configured batch limit of texts.
func AnalyzeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "texts is required")
		return
	}

	outcome, err := getApp(c).Sentiment.PredictBatch(c.Request.Context(), req.Texts)
	if err != nil {
		respondPredictError(c, err)
		return
	}
	respondOK(c, outcome)
}

// QuickAnalyze classifies a short text passed as a query parameter. Handy for
// smoke checks from a browser.
func QuickAnalyze(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		respondError(c, http.StatusBadRequest, "text query parameter is required")
		return
	}
	if len([]rune(text)) > 500 {
		respondError(c, http.StatusBadRequest, "text must be 500 characters or fewer")
		return
	}

	result, err := getApp(c).Sentiment.Predict(c.Request.Context(), text)
	if err != nil {
		respondPredictError(c, err)
		return
	}
	respondOK(c, gin.H{
		"text":       result.Text,
		"sentiment":  result.Sentiment,
		"confidence": result.Confidence,
	})
}

func respondPredictError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sentiment.ErrEmptyText),
		errors.Is(err, sentiment.ErrTextTooLong),
		errors.Is(err, sentiment.ErrBatchEmpty),
		errors.Is(err, sentiment.ErrBatchTooLarge):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, sentiment.ErrModelUnavailable):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
