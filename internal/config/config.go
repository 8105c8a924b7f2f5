// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Healing    HealingConfig    `mapstructure:"healing" yaml:"healing"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig configures the zap logger and its file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AIProvider identifies a supported fix-generation backend.
type AIProvider string

const (
	ProviderOpenRouter AIProvider = "openrouter"
	ProviderOpenAI     AIProvider = "openai"
)

// AIConfig configures the fix-generation service client.
type AIConfig struct {
	Provider    AIProvider    `mapstructure:"provider" yaml:"provider"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// HealingConfig configures the healing orchestrator and its backup subsystem.
type HealingConfig struct {
	MaxAttempts    int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	EnableRollback bool   `mapstructure:"enable_rollback" yaml:"enable_rollback"`
	EnableBackup   bool   `mapstructure:"enable_backup" yaml:"enable_backup"`
	BackupDir      string `mapstructure:"backup_dir" yaml:"backup_dir"`
	HistoryFile    string `mapstructure:"history_file" yaml:"history_file"`
	// MaxConcurrent declares how many healing sessions a caller may run at
	// once. The orchestrator itself is a serial state machine; serializing
	// sessions against the same job file is the caller's responsibility.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	// Interpreter runs the job during the test step (e.g. "python3").
	Interpreter string `mapstructure:"interpreter" yaml:"interpreter"`
	// TestTimeout bounds a single test-run of the job.
	TestTimeout time.Duration `mapstructure:"test_timeout" yaml:"test_timeout"`
}

// PipelineConfig configures the reference ETL job.
type PipelineConfig struct {
	DataPath    string            `mapstructure:"data_path" yaml:"data_path"`
	OutputPath  string            `mapstructure:"output_path" yaml:"output_path"`
	RenameMap   map[string]string `mapstructure:"rename_map" yaml:"rename_map"`
	RequiredCol []string          `mapstructure:"required_columns" yaml:"required_columns"`
}

// MonitoringConfig configures healing-history recording and Slack alerting.
type MonitoringConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	MetricsFile     string        `mapstructure:"metrics_file" yaml:"metrics_file"`
	SlackWebhookURL string        `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url"`
	AlertOnFailure  bool          `mapstructure:"alert_on_failure" yaml:"alert_on_failure"`
	AlertOnSuccess  bool          `mapstructure:"alert_on_success" yaml:"alert_on_success"`
	DedupWindow     time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pipemedic")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- AI --
	v.SetDefault("ai.provider", "openrouter")
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "openai/gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.0)
	v.SetDefault("ai.max_tokens", 4000)
	v.SetDefault("ai.api_timeout", "60s")
	v.SetDefault("ai.max_retries", 3)

	// -- Healing --
	v.SetDefault("healing.max_attempts", 3)
	v.SetDefault("healing.enable_rollback", true)
	v.SetDefault("healing.enable_backup", true)
	v.SetDefault("healing.backup_dir", "logs/backups")
	v.SetDefault("healing.history_file", "logs/version_history.json")
	v.SetDefault("healing.max_concurrent", 1)
	v.SetDefault("healing.interpreter", "python3")
	v.SetDefault("healing.test_timeout", "2m")

	// -- Pipeline --
	v.SetDefault("pipeline.data_path", "data/raw/users.csv")
	v.SetDefault("pipeline.output_path", "data/processed/users_processed.csv")
	v.SetDefault("pipeline.rename_map", map[string]string{
		"uid":           "id",
		"customer_name": "name",
		"email":         "email_address",
		"signup_date":   "created_at",
	})
	v.SetDefault("pipeline.required_columns", []string{"id", "name", "email_address", "created_at"})

	// -- Monitoring --
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_file", "logs/metrics.json")
	v.SetDefault("monitoring.alert_on_failure", true)
	v.SetDefault("monitoring.alert_on_success", false)
	v.SetDefault("monitoring.dedup_window", "5m")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":8000")
}

// Load reads the optional config file, the optional .env file, and the
// environment, and returns a validated Config. cfgFile may be empty, in which
// case ./config.yaml is tried.
func Load(cfgFile string) (*Config, error) {
	// A local .env is a convenience for API keys; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PIPEMEDIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a validated configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("ai.api_key", "PIPEMEDIC_AI_API_KEY")
	_ = v.BindEnv("monitoring.slack_webhook_url", "PIPEMEDIC_SLACK_WEBHOOK_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the raw environment if Unmarshal did not pick the key up.
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv("PIPEMEDIC_AI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai configuration invalid: %w", err)
	}
	if err := c.Healing.Validate(); err != nil {
		return fmt.Errorf("healing configuration invalid: %w", err)
	}
	if c.Monitoring.DedupWindow < 0 {
		return fmt.Errorf("monitoring.dedup_window must not be negative")
	}
	return nil
}

// Validate checks the AI configuration.
func (a *AIConfig) Validate() error {
	switch a.Provider {
	case ProviderOpenRouter, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai provider '%s'. Supported: [%s, %s]",
			a.Provider, ProviderOpenRouter, ProviderOpenAI)
	}
	if a.Temperature < 0.0 || a.Temperature > 2.0 {
		return fmt.Errorf("ai.temperature must be between 0.0 and 2.0")
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must not be negative")
	}
	if a.APITimeout <= 0 {
		return fmt.Errorf("ai.api_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the Healing configuration. MaxAttempts below one is legal
// and means "zero attempts, immediate rollback", so it is not rejected here.
func (h *HealingConfig) Validate() error {
	if h.BackupDir == "" {
		return fmt.Errorf("healing.backup_dir is required")
	}
	if h.HistoryFile == "" {
		return fmt.Errorf("healing.history_file is required")
	}
	if h.MaxConcurrent < 1 {
		return fmt.Errorf("healing.max_concurrent must be a positive integer")
	}
	if h.TestTimeout <= 0 {
		return fmt.Errorf("healing.test_timeout must be a positive duration")
	}
	return nil
}
