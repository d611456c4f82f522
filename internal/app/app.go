package app

import (
	"context"

	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/db"
	"github.com/labzang/sentiment-server/internal/db/repository"
	"github.com/labzang/sentiment-server/internal/mq"
	"github.com/labzang/sentiment-server/internal/services/archiver"
	"github.com/labzang/sentiment-server/internal/services/filestorage"
	"github.com/labzang/sentiment-server/internal/services/sentiment"
	"github.com/labzang/sentiment-server/internal/services/training"
	"github.com/labzang/sentiment-server/pkg/logger"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// App wires the server's long-lived pieces together and owns their lifecycle.
type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	db *bun.DB
	mq mq.MQ

	Logger    *zap.Logger
	Sentiment *sentiment.Service
	Trainer   *training.Runner
	Archiver  *archiver.Archiver

	TrainingRunRepository repository.ITrainingRunRepository
}

// OptionFunc funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(log *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = log
		return nil
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		queue, err := mq.NewMQ(app.config)
		if err != nil {
			return err
		}
		app.mq = queue
		return nil
	}
}

func WithDB() OptionFunc {
	return func(app *App) error {
		conn, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.db = conn
		app.TrainingRunRepository = repository.NewTrainingRunRepository(conn)
		return nil
	}
}

func WithSentiment() OptionFunc {
	return func(app *App) error {
		app.Sentiment = sentiment.NewService(app.Logger.Named("sentiment"), sentiment.Params{
			FinetunedDir:  app.config.FinetunedModelDir,
			BaseDir:       app.config.BaseModelDir,
			Device:        app.config.Device,
			MaxTextLength: app.config.MaxTextLength,
			MaxBatchSize:  app.config.MaxBatchSize,
		})
		return nil
	}
}

func WithTrainer() OptionFunc {
	return func(app *App) error {
		app.Trainer = training.NewRunner(
			app.Logger.Named("training"),
			app.config.Trainer,
			app.config.FinetunedModelDir,
			app.TrainingRunRepository,
			app.mq,
		)
		return nil
	}
}

func WithArchiver() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.config)
		if err != nil {
			return err
		}
		app.Archiver = archiver.New(app.Logger, storage)
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	log, err := logger.NewLogger(cfg.Environment)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     log,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.Trainer != nil {
		app.Trainer.StopWait()
	}
	if app.Archiver != nil {
		app.Archiver.StopWait()
	}
	if app.mq != nil {
		app.mq.Close()
	}
	if app.db != nil {
		app.db.Close()
	}
	app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}
