package training

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/db/models"
	"github.com/labzang/sentiment-server/internal/db/repository"
	"github.com/labzang/sentiment-server/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryRepo is an in-memory stand-in for the bun-backed repository.
type memoryRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*models.TrainingRun
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{runs: make(map[uuid.UUID]*models.TrainingRun)}
}

func (m *memoryRepo) Create(_ context.Context, run *models.TrainingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *run
	m.runs[run.ID] = &clone
	return nil
}

func (m *memoryRepo) Update(_ context.Context, run *models.TrainingRun) error {
	return m.Create(context.Background(), run)
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	clone := *run
	return &clone, nil
}

func (m *memoryRepo) List(_ context.Context, _ int) ([]*models.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TrainingRun, 0, len(m.runs))
	for _, run := range m.runs {
		clone := *run
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memoryRepo) Latest(_ context.Context) (*models.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.TrainingRun
	for _, run := range m.runs {
		if latest == nil || run.CreatedAt.Time.After(latest.CreatedAt.Time) {
			latest = run
		}
	}
	if latest == nil {
		return nil, repository.ErrRunNotFound
	}
	clone := *latest
	return &clone, nil
}

func waitForStatus(t *testing.T, repo *memoryRepo, id uuid.UUID, status string) *models.TrainingRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		if run.Status == status {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %s", id, status)
	return nil
}

func TestRunnerRequiresCommand(t *testing.T) {
	r := NewRunner(zap.NewNop(), config.TrainerConfig{}, t.TempDir(), newMemoryRepo(), mq.NewInMemoryMQ())
	_, err := r.Submit(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTrainerNotConfigured)
}

func TestRunnerCompletesAndPublishes(t *testing.T) {
	repo := newMemoryRepo()
	queue := mq.NewInMemoryMQ()
	outDir := t.TempDir()
	r := NewRunner(zap.NewNop(), config.TrainerConfig{Command: "true", Epochs: 3}, outDir, repo, queue)
	defer r.StopWait()

	run, err := r.Submit(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, run.Status)
	assert.Equal(t, 3, run.Epochs)

	done := waitForStatus(t, repo, run.ID, models.RunStatusCompleted)
	assert.Equal(t, outDir, done.OutputDir)
	assert.False(t, done.FinishedAt.IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := queue.Receive(ctx, TopicTrainingEvents)
	require.NoError(t, err)

	var event CompletionEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, run.ID, event.RunID)
	assert.Equal(t, outDir, event.OutputDir)
}

func TestRunnerRecordsFailure(t *testing.T) {
	repo := newMemoryRepo()
	r := NewRunner(zap.NewNop(), config.TrainerConfig{Command: "false"}, t.TempDir(), repo, mq.NewInMemoryMQ())
	defer r.StopWait()

	run, err := r.Submit(context.Background(), 1)
	require.NoError(t, err)

	failed := waitForStatus(t, repo, run.ID, models.RunStatusFailed)
	assert.NotEmpty(t, failed.Error)
}

func TestRunnerStatus(t *testing.T) {
	repo := newMemoryRepo()
	r := NewRunner(zap.NewNop(), config.TrainerConfig{Command: "true"}, t.TempDir(), repo, mq.NewInMemoryMQ())
	defer r.StopWait()

	none, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)

	run, err := r.Submit(context.Background(), 1)
	require.NoError(t, err)
	waitForStatus(t, repo, run.ID, models.RunStatusCompleted)

	latest, err := r.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
}
