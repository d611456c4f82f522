package config

import "github.com/spf13/viper"

// SetDefaults registers the baseline settings every run starts from.
func SetDefaults() {
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 9020)
	viper.SetDefault("environment", "dev")

	viper.SetDefault("home_dir", "~/.sentiment")
	viper.SetDefault("base_model_repo", "monologg/koelectra-small-v3-discriminator")

	viper.SetDefault("device", "cpu")
	viper.SetDefault("max_batch_size", 50)
	viper.SetDefault("max_text_length", 1000)

	viper.SetDefault("filesystem", "local")

	viper.SetDefault("db.driver", "sqlite")

	viper.SetDefault("trainer.command", "")
	viper.SetDefault("trainer.epochs", 3)
}
