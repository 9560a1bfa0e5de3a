package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Logging       LoggingConfig       `yaml:"logging"`
	App           AppConfig           `yaml:"app"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Costs         CostsConfig         `yaml:"costs"`
	AI            AIConfig            `yaml:"ai"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the optional queue-event broker configuration.
// When disabled, job lifecycle events are simply not published.
type RabbitMQConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	VHost         string        `yaml:"vhost"`
	Exchange      string        `yaml:"exchange"`
	RoutingKey    string        `yaml:"routing_key"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// StorageConfig holds audio storage configuration
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// TranscriptionConfig holds provider selection and queue reconciliation
// settings
type TranscriptionConfig struct {
	DefaultProvider  string        `yaml:"default_provider"`
	DefaultLanguage  string        `yaml:"default_language"`
	DefaultModel     string        `yaml:"default_model"`
	MaxRetries       int           `yaml:"max_retries"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
	CleanupRetention time.Duration `yaml:"cleanup_retention"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	TimeoutInterval  time.Duration `yaml:"timeout_interval"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
	CleanupCron      string        `yaml:"cleanup_cron"`
	OpenAI           OpenAIConfig  `yaml:"openai"`
	Whisper          WhisperConfig `yaml:"whisper"`
}

// OpenAIConfig holds OpenAI API settings
type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WhisperConfig holds server-local whisper.cpp settings
type WhisperConfig struct {
	BinaryPath string        `yaml:"binary_path"`
	ModelsDir  string        `yaml:"models_dir"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CostsConfig holds pricing and FX constants for cost estimation. Values
// are decimal strings to avoid float rounding at the config boundary.
type CostsConfig struct {
	WhisperPricePerMinUSD string `yaml:"whisper_price_per_min_usd"`
	FxUSDBRL              string `yaml:"fx_usd_brl"`
}

// AIConfig holds completion provider settings
type AIConfig struct {
	DefaultProvider string       `yaml:"default_provider"`
	Ollama          OllamaConfig `yaml:"ollama"`
}

// OllamaConfig holds local Ollama settings
type OllamaConfig struct {
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills in the recognized defaults for queue reconciliation
// and cost estimation.
func (c *Config) applyDefaults() {
	if c.Transcription.MaxRetries == 0 {
		c.Transcription.MaxRetries = 3
	}
	if c.Transcription.JobTimeout == 0 {
		c.Transcription.JobTimeout = 30 * time.Minute
	}
	if c.Transcription.CleanupRetention == 0 {
		c.Transcription.CleanupRetention = 24 * time.Hour
	}
	if c.Transcription.RetryInterval == 0 {
		c.Transcription.RetryInterval = 5 * time.Minute
	}
	if c.Transcription.TimeoutInterval == 0 {
		c.Transcription.TimeoutInterval = 10 * time.Minute
	}
	if c.Transcription.StatsInterval == 0 {
		c.Transcription.StatsInterval = time.Hour
	}
	if c.Transcription.CleanupCron == "" {
		c.Transcription.CleanupCron = "0 3 * * *"
	}
	if c.Transcription.DefaultLanguage == "" {
		c.Transcription.DefaultLanguage = "en"
	}
	if c.Costs.WhisperPricePerMinUSD == "" {
		c.Costs.WhisperPricePerMinUSD = "0.006"
	}
	if c.Costs.FxUSDBRL == "" {
		c.Costs.FxUSDBRL = "5.0"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required when rabbitmq is enabled")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange name is required when rabbitmq is enabled")
		}
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("transcription max_retries must not be negative")
	}

	if c.Transcription.JobTimeout <= 0 {
		return fmt.Errorf("transcription job_timeout must be greater than 0")
	}

	return nil
}
