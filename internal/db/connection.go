package db

import (
	"context"
	"fmt"

	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/db/drivers"
	"github.com/labzang/sentiment-server/internal/db/models"
	"github.com/uptrace/bun"
)

// NewConnection opens the configured database and ensures the schema exists.
func NewConnection(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)
	switch cfg.DB.Driver {
	case "postgres", "pg":
		db, err = drivers.NewPostgres(cfg.DB.DSN)
	case "sqlite", "":
		db, err = drivers.NewSQLite(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.DB.Driver)
	}
	if err != nil {
		return nil, err
	}

	if _, err := db.NewCreateTable().
		Model((*models.TrainingRun)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create training_runs table: %w", err)
	}

	return db, nil
}
