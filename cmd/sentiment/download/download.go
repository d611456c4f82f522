package cmd

import (
	"github.com/labzang/sentiment-server/internal/config"
	"github.com/labzang/sentiment-server/internal/services/modeldownloader"
	"github.com/labzang/sentiment-server/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "download",
	Short: "Download the base KoELECTRA checkpoint from the HuggingFace Hub",
	RunE:  runDownload,
}

func init() {
	flags := Cmd.Flags()
	flags.String("repo", "", "HuggingFace repo id (defaults to the configured base model)")
	viper.BindPFlag("download_repo", flags.Lookup("repo"))
}

func runDownload(_ *cobra.Command, _ []string) error {
	cfg := config.MustGetConfig()

	repo := viper.GetString("download_repo")
	if repo == "" {
		repo = cfg.BaseModelRepo
	}

	log := logger.MustNewLogger(cfg.Environment)
	defer log.Sync()

	manager := modeldownloader.NewManager(log, cfg.HFToken)
	return manager.EnsureInstalled(repo, cfg.BaseModelDir)
}
