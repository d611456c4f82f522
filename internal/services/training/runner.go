// Package training queues and runs fine-tuning jobs. Training itself happens
// in an external trainer process; this package records runs, captures their
// output and announces completed checkpoints over the message queue.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/db/models"
	"github.com/labzang/sentiment-server/internal/db/repository"
	"github.com/labzang/sentiment-server/internal/mq"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TopicTrainingEvents carries CompletionEvent messages for finished runs.
const TopicTrainingEvents = "sentiment.training"

// ErrTrainerNotConfigured is returned when no trainer command is set.
var ErrTrainerNotConfigured = errors.New("trainer command not configured")

// CompletionEvent is published when a run finishes successfully.
type CompletionEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	OutputDir string    `json:"output_dir"`
}

// Runner executes fine-tuning jobs one at a time on a worker pool.
type Runner struct {
	log       *zap.Logger
	cfg       config.TrainerConfig
	outputDir string
	repo      repository.ITrainingRunRepository
	queue     mq.MQ
	pool      *workerpool.WorkerPool
}

func NewRunner(log *zap.Logger, cfg config.TrainerConfig, outputDir string,
	repo repository.ITrainingRunRepository, queue mq.MQ) *Runner {
	return &Runner{
		log:       log,
		cfg:       cfg,
		outputDir: outputDir,
		repo:      repo,
		queue:     queue,
		pool:      workerpool.New(1),
	}
}

// Submit records a queued run and schedules it. The returned record reflects
// the queued state; progress is tracked through the repository.
func (r *Runner) Submit(ctx context.Context, epochs int) (*models.TrainingRun, error) {
	if r.cfg.Command == "" {
		return nil, ErrTrainerNotConfigured
	}
	if epochs <= 0 {
		epochs = r.cfg.Epochs
	}

	run := &models.TrainingRun{
		ID:        uuid.New(),
		Status:    models.RunStatusQueued,
		Epochs:    epochs,
		CreatedAt: bun.NullTime{Time: time.Now().UTC()},
	}
	if err := r.repo.Create(ctx, run); err != nil {
		return nil, err
	}

	r.pool.Submit(func() {
		r.execute(run)
	})
	return run, nil
}

func (r *Runner) execute(run *models.TrainingRun) {
	ctx := context.Background()
	log := r.log.With(zap.String("run_id", run.ID.String()))

	run.Status = models.RunStatusRunning
	run.StartedAt = bun.NullTime{Time: time.Now().UTC()}
	if err := r.repo.Update(ctx, run); err != nil {
		log.Error("failed to mark run as running", zap.Error(err))
	}

	args := append([]string{}, r.cfg.Args...)
	args = append(args,
		"--epochs", strconv.Itoa(run.Epochs),
		"--output-dir", r.outputDir,
	)
	if r.cfg.DataDir != "" {
		args = append(args, "--data-dir", r.cfg.DataDir)
	}

	log.Info("starting trainer", zap.String("command", r.cfg.Command), zap.Strings("args", args))
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	output, err := cmd.CombinedOutput()

	run.Output = string(output)
	run.FinishedAt = bun.NullTime{Time: time.Now().UTC()}
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if uerr := r.repo.Update(ctx, run); uerr != nil {
			log.Error("failed to record failed run", zap.Error(uerr))
		}
		log.Error("trainer failed", zap.Error(err))
		return
	}

	run.Status = models.RunStatusCompleted
	run.OutputDir = r.outputDir
	if err := r.repo.Update(ctx, run); err != nil {
		log.Error("failed to record completed run", zap.Error(err))
	}

	if err := r.publishCompletion(ctx, run); err != nil {
		log.Error("failed to publish completion event", zap.Error(err))
		return
	}
	log.Info("training run completed", zap.String("output_dir", run.OutputDir))
}

func (r *Runner) publishCompletion(ctx context.Context, run *models.TrainingRun) error {
	payload, err := json.Marshal(CompletionEvent{RunID: run.ID, OutputDir: run.OutputDir})
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}
	return r.queue.Publish(ctx, TopicTrainingEvents, payload)
}

// Status returns the most recent run, or nil when none exists.
func (r *Runner) Status(ctx context.Context) (*models.TrainingRun, error) {
	run, err := r.repo.Latest(ctx)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, nil
	}
	return run, err
}

// Get fetches a run by id.
func (r *Runner) Get(ctx context.Context, id uuid.UUID) (*models.TrainingRun, error) {
	return r.repo.GetByID(ctx, id)
}

// List returns recent runs, newest first.
func (r *Runner) List(ctx context.Context, limit int) ([]*models.TrainingRun, error) {
	return r.repo.List(ctx, limit)
}

// StopWait drains queued jobs and blocks until running ones finish.
func (r *Runner) StopWait() {
	r.pool.StopWait()
}
