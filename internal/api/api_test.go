package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labzang/sentiment-server/internal/api"
	"github.com/labzang/sentiment-server/internal/app"
	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/db/models"
	"github.com/labzang/sentiment-server/internal/db/repository"
	"github.com/labzang/sentiment-server/internal/mq"
	"github.com/labzang/sentiment-server/internal/services/training"
	"github.com/labzang/sentiment-server/pkg/electra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCheckpoint(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cfg := map[string]any{
		"vocab_size":              16,
		"embedding_size":          8,
		"hidden_size":             16,
		"num_hidden_layers":       1,
		"num_attention_heads":     2,
		"intermediate_size":       24,
		"max_position_embeddings": 32,
		"num_labels":              2,
	}
	cfgJSON, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), cfgJSON, 0o644))

	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\n[MASK]\n이\n영화\n최고\n최악\n좋아요\n별로\n!\n.\na\nb\nc\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0o644))

	mcfg, err := electra.LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	model := electra.NewForSequenceClassification(mcfg, rand.New(rand.NewSource(3)))
	require.NoError(t, electra.SaveStateDict(filepath.Join(dir, "model.safetensors"), model.NamedTensors()))
}

type stubRepo struct {
	runs map[uuid.UUID]*models.TrainingRun
}

func (s *stubRepo) Create(_ context.Context, run *models.TrainingRun) error {
	s.runs[run.ID] = run
	return nil
}

func (s *stubRepo) Update(_ context.Context, run *models.TrainingRun) error {
	s.runs[run.ID] = run
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*models.TrainingRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return run, nil
}

func (s *stubRepo) List(_ context.Context, _ int) ([]*models.TrainingRun, error) {
	out := make([]*models.TrainingRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	return out, nil
}

func (s *stubRepo) Latest(_ context.Context) (*models.TrainingRun, error) {
	for _, run := range s.runs {
		return run, nil
	}
	return nil, repository.ErrRunNotFound
}

func newTestServer(t *testing.T, trainerCommand string) (*httptest.Server, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := filepath.Join(t.TempDir(), "base")
	writeCheckpoint(t, base)

	cfg := &config.Config{
		Environment:       "test",
		BaseModelDir:      base,
		FinetunedModelDir: filepath.Join(t.TempDir(), "finetuned"),
		Device:            "cpu",
		MaxBatchSize:      50,
		MaxTextLength:     1000,
		Trainer:           config.TrainerConfig{Command: trainerCommand, Epochs: 2},
	}

	a, err := app.NewApp(cfg, app.WithSentiment())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	a.Trainer = training.NewRunner(a.Logger, cfg.Trainer, cfg.FinetunedModelDir,
		&stubRepo{runs: make(map[uuid.UUID]*models.TrainingRun)}, mq.NewInMemoryMQ())

	wrap := func(f func(c *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("app", a)
			f(c)
		}
	}

	r := gin.New()
	v1 := r.Group("/api/v1/sentiment")
	v1.POST("/analyze", wrap(api.AnalyzeSentiment))
	v1.POST("/batch", wrap(api.AnalyzeBatch))
	v1.GET("/quick", wrap(api.QuickAnalyze))
	v1.GET("/model/info", wrap(api.GetModelInfo))
	v1.GET("/health", wrap(api.GetModelHealth))
	v1.GET("/examples", wrap(api.GetExamples))
	v1.POST("/train", wrap(api.StartTraining))
	v1.GET("/training/status", wrap(api.GetTrainingStatus))
	v1.GET("/training/runs", wrap(api.ListTrainingRuns))
	v1.GET("/training/runs/:id", wrap(api.GetTrainingRun))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, a
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) api.Envelope {
	t.Helper()
	defer resp.Body.Close()
	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	t.Run("classifies text", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/analyze", map[string]string{"text": "이 영화 최고!"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		env := decodeEnvelope(t, resp)
		assert.True(t, env.Success)
		data := env.Data.(map[string]any)
		assert.Contains(t, []any{"긍정", "부정"}, data["sentiment"])
	})

	t.Run("rejects missing text", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/analyze", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		assert.False(t, env.Success)
	})

	t.Run("rejects whitespace-only text", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/analyze", map[string]string{"text": "   "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBatchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	t.Run("mixed batch keeps order", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/batch",
			map[string]any{"texts": []string{"이 영화 최고", " ", "최악"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		env := decodeEnvelope(t, resp)
		data := env.Data.(map[string]any)
		assert.EqualValues(t, 3, data["total_count"])
		assert.EqualValues(t, 2, data["success_count"])
		assert.EqualValues(t, 1, data["error_count"])

		results := data["results"].([]any)
		second := results[1].(map[string]any)
		assert.Contains(t, second, "error")
	})

	t.Run("rejects oversized batch", func(t *testing.T) {
		texts := make([]string, 51)
		for i := range texts {
			texts[i] = "최고"
		}
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/batch", map[string]any{"texts": texts})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/batch", map[string]any{"texts": []string{}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestQuickEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/api/v1/sentiment/quick?text=" + "%EC%B5%9C%EA%B3%A0")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	resp, err = http.Get(srv.URL + "/api/v1/sentiment/quick")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestModelEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/api/v1/sentiment/model/info")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	data := env.Data.(map[string]any)
	assert.Equal(t, "KoELECTRA", data["model_name"])

	resp, err = http.Get(srv.URL + "/api/v1/sentiment/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env = decodeEnvelope(t, resp)
	data = env.Data.(map[string]any)
	assert.Equal(t, "healthy", data["status"])

	resp, err = http.Get(srv.URL + "/api/v1/sentiment/examples")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env = decodeEnvelope(t, resp)
	data = env.Data.(map[string]any)
	assert.NotEmpty(t, data["examples"])
}

func TestHealthEndpointWithoutModel(t *testing.T) {
	srv, a := newTestServer(t, "")

	// Break the checkpoint so the lazy load fails.
	require.NoError(t, os.Remove(filepath.Join(a.Config().BaseModelDir, "model.safetensors")))

	resp, err := http.Get(srv.URL + "/api/v1/sentiment/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestTrainingEndpoints(t *testing.T) {
	t.Run("rejects when trainer not configured", func(t *testing.T) {
		srv, _ := newTestServer(t, "")
		resp := postJSON(t, srv.URL+"/api/v1/sentiment/train", map[string]int{"epochs": 1})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("queues a run and exposes it", func(t *testing.T) {
		srv, a := newTestServer(t, "true")
		defer a.Trainer.StopWait()

		resp := postJSON(t, srv.URL+"/api/v1/sentiment/train", map[string]int{"epochs": 1})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		data := env.Data.(map[string]any)
		runID := data["id"].(string)

		get, err := http.Get(srv.URL + "/api/v1/sentiment/training/runs/" + runID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, get.StatusCode)
		get.Body.Close()

		status, err := http.Get(srv.URL + "/api/v1/sentiment/training/status")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status.StatusCode)
		status.Body.Close()

		list, err := http.Get(srv.URL + "/api/v1/sentiment/training/runs")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, list.StatusCode)
		env = decodeEnvelope(t, list)
		data = env.Data.(map[string]any)
		assert.Len(t, data["runs"], 1)
	})

	t.Run("unknown run returns 404", func(t *testing.T) {
		srv, _ := newTestServer(t, "true")
		resp, err := http.Get(srv.URL + "/api/v1/sentiment/training/runs/" + uuid.NewString())
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		resp, err = http.Get(srv.URL + "/api/v1/sentiment/training/runs/not-a-uuid")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}
