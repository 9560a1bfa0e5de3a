package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "meetscribe_db", cfg.Database.Database)
				assert.True(t, cfg.RabbitMQ.Enabled)
				assert.Equal(t, "transcription_events", cfg.RabbitMQ.Exchange)
				assert.Equal(t, "meetscribe-api", cfg.App.Name)
				assert.Equal(t, "/var/lib/meetscribe/audio", cfg.Storage.DataDir)
				assert.Equal(t, "remote_openai", cfg.Transcription.DefaultProvider)
				assert.Equal(t, "pt", cfg.Transcription.DefaultLanguage)
				assert.Equal(t, 30*time.Minute, cfg.Transcription.JobTimeout)
				assert.Equal(t, "/usr/local/bin/whisper-cli", cfg.Transcription.Whisper.BinaryPath)
				assert.Equal(t, "0.006", cfg.Costs.WhisperPricePerMinUSD)
				assert.Equal(t, "http://localhost:11434", cfg.AI.Ollama.BaseURL)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Transcription.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.Transcription.JobTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Transcription.CleanupRetention)
	assert.Equal(t, 5*time.Minute, cfg.Transcription.RetryInterval)
	assert.Equal(t, 10*time.Minute, cfg.Transcription.TimeoutInterval)
	assert.Equal(t, time.Hour, cfg.Transcription.StatsInterval)
	assert.Equal(t, "0 3 * * *", cfg.Transcription.CleanupCron)
	assert.Equal(t, "en", cfg.Transcription.DefaultLanguage)
	assert.Equal(t, "0.006", cfg.Costs.WhisperPricePerMinUSD)
	assert.Equal(t, "5.0", cfg.Costs.FxUSDBRL)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "meetscribe_db",
		},
		Storage: StorageConfig{DataDir: "/var/lib/meetscribe/audio"},
		Transcription: TranscriptionConfig{
			MaxRetries: 3,
			JobTimeout: 30 * time.Minute,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "server port too large",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name: "rabbitmq enabled without host",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = true
				c.RabbitMQ.Port = 5672
				c.RabbitMQ.Exchange = "events"
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq enabled without exchange",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Port = 5672
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "rabbitmq disabled skips rabbitmq checks",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = false
			},
			wantErr: false,
		},
		{
			name:      "missing data dir",
			mutate:    func(c *Config) { c.Storage.DataDir = "" },
			wantErr:   true,
			errString: "storage data_dir is required",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Transcription.MaxRetries = -1 },
			wantErr:   true,
			errString: "max_retries must not be negative",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Transcription.JobTimeout = 0 },
			wantErr:   true,
			errString: "job_timeout must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
