package models

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	RunStatusQueued    = "QUEUED"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// TrainingRun records one fine-tuning invocation of the external trainer.
type TrainingRun struct {
	bun.BaseModel `bun:"table:training_runs"`

	ID     uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Status string    `bun:"status,notnull" json:"status"`
	Epochs int       `bun:"epochs" json:"epochs"`

	// OutputDir is the checkpoint directory the trainer wrote on success.
	OutputDir string `bun:"output_dir" json:"output_dir,omitempty"`

	// Output captures the trainer's combined stdout and stderr.
	Output string `bun:"output" json:"output,omitempty"`
	Error  string `bun:"error" json:"error,omitempty"`

	StartedAt  bun.NullTime `bun:"started_at" json:"started_at"`
	FinishedAt bun.NullTime `bun:"finished_at" json:"finished_at"`
	CreatedAt  bun.NullTime `bun:"created_at,notnull" json:"created_at"`
}
