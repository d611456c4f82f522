package cmd

import (
	"fmt"
	"os"
	"strings"

	download "github.com/labzang/sentiment-server/cmd/sentiment/download"
	run "github.com/labzang/sentiment-server/cmd/sentiment/run"
	"github.com/labzang/sentiment-server/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SENTIMENT"

var Cmd = &cobra.Command{
	Use:   "sentiment",
	Short: "KoELECTRA sentiment analysis server",
	Long:  "Serves Korean sentiment analysis over HTTP from a KoELECTRA checkpoint, with fine-tuning and checkpoint management",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`,
			`.`, `_`,
		))
		viper.AutomaticEnv()

		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		config.SetDefaults()
		return config.LoadEnvAndConfigFiles()
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home-dir", "", "Path to the sentiment home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("home_dir", pflags.Lookup("home-dir"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(run.Cmd, download.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
