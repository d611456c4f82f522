package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labzang/sentiment-server/internal/app"
	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/server"
	"github.com/labzang/sentiment-server/internal/services/training"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sentiment server",
	RunE:  runApp,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", 9020, "Port to run the server on")
	flags.String("host", "0.0.0.0", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration")
	flags.String("device", "cpu", "Inference device label reported by the API")
	flags.Int("max-batch-size", 50, "Maximum number of texts per batch request")
	flags.Int("max-text-length", 1000, "Maximum characters per text")
	flags.String("base-model-repo", "", "HuggingFace repo id of the base checkpoint")
	flags.String("filesystem", "local", "Archive storage: 'local' or 's3'")

	flags.String("db-driver", "sqlite", "Database driver: 'sqlite' or 'postgres'")
	flags.String("db-dsn", "", "Database DSN (connection URL or sqlite path)")
	flags.String("pulsar-url", "", "URL of the pulsar broker. Example: pulsar://localhost:6650")

	flags.String("trainer-command", "", "External trainer command to run for fine-tuning")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region", "", "S3 region name")
	flags.String("s3-bucket", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	viper.BindPFlags(flags)
	bindEnvs()
}

func bindEnvs() {
	// Core settings, read with the SENTIMENT_ prefix
	// Example: SENTIMENT_PORT
	viper.BindEnv("port")
	viper.BindEnv("host")
	viper.BindEnv("environment")
	viper.BindEnv("device")
	viper.BindEnv("max_batch_size")
	viper.BindEnv("max_text_length")
	viper.BindEnv("base_model_repo")
	viper.BindEnv("filesystem")

	viper.BindEnv("db.driver")
	viper.BindEnv("db.dsn")
	viper.BindEnv("pulsar.url")

	viper.BindEnv("trainer.command")
	viper.BindEnv("trainer.data_dir")
	viper.BindEnv("trainer.epochs")

	viper.BindEnv("s3.access_key")
	viper.BindEnv("s3.secret_key")
	viper.BindEnv("s3.region")
	viper.BindEnv("s3.bucket")
	viper.BindEnv("s3.folder")
	viper.BindEnv("s3.endpoint_url")

	viper.BindEnv("hf_token", "HF_TOKEN")
}

func runApp(_ *cobra.Command, _ []string) error {
	a, err := createNewApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.NewServer(a.Config())
	if err != nil {
		return err
	}
	srv.SetupRoutes(a)

	errc := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	go consumeTrainingEvents(a)

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-signalc:
		a.Logger.Info("shutting down")
		return srv.Stop(context.Background())
	}
}

func createNewApp() (*app.App, error) {
	return app.NewApp(
		config.MustGetConfig(),
		app.WithMQ(),
		app.WithDB(),
		app.WithSentiment(),
		app.WithTrainer(),
		app.WithArchiver(),
	)
}

// consumeTrainingEvents hot-reloads the model and archives the checkpoint
// whenever a training run completes.
func consumeTrainingEvents(a *app.App) {
	ctx := a.Context()
	for {
		payload, err := a.MQ().Receive(ctx, training.TopicTrainingEvents)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.Logger.Error("failed to receive training event", zap.Error(err))
			continue
		}

		var event training.CompletionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			a.Logger.Error("malformed training event", zap.Error(err))
			continue
		}

		a.Logger.Info("training completed, reloading model",
			zap.String("run_id", event.RunID.String()),
			zap.String("output_dir", event.OutputDir))

		if err := a.Sentiment.Reload(ctx); err != nil {
			a.Logger.Error("model reload failed", zap.Error(err))
			continue
		}
		a.Archiver.ArchiveAsync(event.OutputDir)
	}
}
