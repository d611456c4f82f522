package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labzang/sentiment-server/internal/db/repository"
	"github.com/labzang/sentiment-server/internal/services/training"
)

// StartTraining queues a fine-tuning run and returns immediately.
func StartTraining(c *gin.Context) {
	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := getApp(c).Trainer.Submit(c.Request.Context(), req.Epochs)
	if err != nil {
		if errors.Is(err, training.ErrTrainerNotConfigured) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondAccepted(c, run)
}

// GetTrainingStatus reports which checkpoints exist, what the service is
// currently serving, how much training data is on disk, and the latest run.
func GetTrainingStatus(c *gin.Context) {
	a := getApp(c)
	cfg := a.Config()

	run, err := a.Trainer.Status(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	status := gin.H{
		"base_model_exists":      dirHasFiles(cfg.BaseModelDir),
		"finetuned_model_exists": dirHasFiles(cfg.FinetunedModelDir),
		"current_model":          a.Sentiment.ModelInfo(),
		"data_file_count":        countFiles(cfg.Trainer.DataDir),
	}
	if run != nil {
		status["latest_run"] = run
	}
	respondOK(c, status)
}

func dirHasFiles(dir string) bool {
	return countFiles(dir) > 0
}

func countFiles(dir string) int {
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// ListTrainingRuns returns recent runs, newest first.
func ListTrainingRuns(c *gin.Context) {
	runs, err := getApp(c).Trainer.List(c.Request.Context(), 50)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{"runs": runs})
}

// GetTrainingRun fetches one run by id.
func GetTrainingRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := getApp(c).Trainer.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, run)
}
