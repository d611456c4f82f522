package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labzang/sentiment-server/internal/utils/pathutil"
	"github.com/spf13/viper"
)

var currentConfig *Config

// Config holds the runtime configuration for the sentiment server. Values can
// come from config files, environment variables with the SENTIMENT_ prefix, or
// command-line flags bound through viper.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`

	// HomeDir is the root for all server-managed state (models, archives,
	// the sqlite database).
	HomeDir           string `mapstructure:"home_dir"`
	ModelsDir         string `mapstructure:"models_dir"`
	BaseModelDir      string `mapstructure:"base_model_dir"`
	FinetunedModelDir string `mapstructure:"finetuned_model_dir"`
	BaseModelRepo     string `mapstructure:"base_model_repo"`

	Device        string `mapstructure:"device"`
	MaxBatchSize  int    `mapstructure:"max_batch_size"`
	MaxTextLength int    `mapstructure:"max_text_length"`

	HFToken string `mapstructure:"hf_token"`

	Filesystem string `mapstructure:"filesystem"`
	ArchiveDir string `mapstructure:"archive_dir"`

	DB      DBConfig      `mapstructure:"db"`
	Trainer TrainerConfig `mapstructure:"trainer"`

	Pulsar *PulsarConfig `mapstructure:"pulsar"`
	S3     *S3Config     `mapstructure:"s3"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// TrainerConfig describes the external fine-tuning command the server shells
// out to for training runs.
type TrainerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Epochs  int      `mapstructure:"epochs"`
	DataDir string   `mapstructure:"data_dir"`
}

type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

type S3Config struct {
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Region      string `mapstructure:"region"`
	Bucket      string `mapstructure:"bucket"`
	Folder      string `mapstructure:"folder"`
	EndpointURL string `mapstructure:"endpoint_url"`
}

// LoadEnvAndConfigFiles reads the optional .env file and the yaml config file
// pointed at by --config / SENTIMENT_CONFIG_FILE, then populates the global
// config.
func LoadEnvAndConfigFiles() error {
	envFile := viper.GetString("env_file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	configFile := viper.GetString("config_file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	_, err := LoadConfig()
	return err
}

// LoadConfig unmarshals viper's merged settings into a Config, expands and
// creates the state directories, and installs it as the process-wide config.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	homeDir, err := pathutil.ExpandPath(cfg.HomeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand home dir: %w", err)
	}
	cfg.HomeDir = homeDir

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = filepath.Join(cfg.HomeDir, "models")
	}
	if cfg.BaseModelDir == "" {
		cfg.BaseModelDir = filepath.Join(cfg.ModelsDir, "base")
	}
	if cfg.FinetunedModelDir == "" {
		cfg.FinetunedModelDir = filepath.Join(cfg.ModelsDir, "finetuned")
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(cfg.HomeDir, "archives")
	}
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = filepath.Join(cfg.HomeDir, "sentiment.db")
	}

	for _, dir := range []string{cfg.HomeDir, cfg.ModelsDir, cfg.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	currentConfig = cfg
	return cfg, nil
}

// GetConfig returns the loaded config or an error when none has been loaded.
func GetConfig() (*Config, error) {
	if currentConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return currentConfig, nil
}

// MustGetConfig panics when no config has been loaded. For use in request
// handlers where a missing config is a programming error.
func MustGetConfig() *Config {
	cfg, err := GetConfig()
	if err != nil {
		panic(err)
	}
	return cfg
}

func init() {
	viper.SetEnvPrefix("sentiment")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}
