package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// exampleTexts are shown to API consumers exploring the service.
var exampleTexts = []string{
	"이 영화는 정말 재미있어요!",
	"서비스가 너무 별로였어요.",
	"배송이 빠르고 포장도 깔끔했습니다.",
	"다시는 주문하지 않을 거예요.",
	"가격 대비 품질이 훌륭하네요.",
}

// GetModelInfo reports the served model without forcing a load.
func GetModelInfo(c *gin.Context) {
	respondOK(c, getApp(c).Sentiment.ModelInfo())
}

// GetModelHealth runs an end-to-end inference probe.
func GetModelHealth(c *gin.Context) {
	report := getApp(c).Sentiment.Health(c.Request.Context())
	if report.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Data: report})
		return
	}
	respondOK(c, report)
}

// GetExamples returns sample sentences for trying the API.
func GetExamples(c *gin.Context) {
	respondOK(c, gin.H{"examples": exampleTexts})
}
