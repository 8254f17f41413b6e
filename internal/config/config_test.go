package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "transcription_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "transcription_exchange",
			},
			Queue: QueueConfig{
				Name: "transcription_jobs",
			},
		},
		Worker: WorkerConfig{
			Concurrency:     2,
			JobTimeout:      2 * time.Hour,
			ChunkRetries:    2,
			RetryBackoff:    5 * time.Second,
			SweepInterval:   time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			FFmpegPath:  "/usr/bin/ffmpeg",
			FFprobePath: "/usr/bin/ffprobe",
			WhisperPath: "/usr/local/bin/whisper-cli",
			ModelsDir:   "/var/lib/video2text/models",
			OutputDir:   "/var/lib/video2text/output",
			TempDir:     "/tmp/video2text",
		},
	}
}

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
				assert.Equal(t, "transcription_db", cfg.Database.Database)
				assert.Equal(t, "transcription_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "transcription_jobs", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "transcription-api-service", cfg.App.Name)
				assert.Equal(t, 2, cfg.Worker.Concurrency)
				assert.Equal(t, 2*time.Hour, cfg.Worker.JobTimeout)
				assert.Equal(t, time.Minute, cfg.Worker.SweepInterval)
				assert.Equal(t, "/usr/bin/ffmpeg", cfg.Media.FFmpegPath)
				assert.Equal(t, "/var/lib/video2text/models", cfg.Media.ModelsDir)
				assert.False(t, cfg.Media.DeleteOutputs)
			}
		})
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
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
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
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorker(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid worker config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "worker job_timeout",
		},
		{
			name:      "negative chunk retries",
			mutate:    func(c *Config) { c.Worker.ChunkRetries = -1 },
			wantErr:   true,
			errString: "worker chunk_retries",
		},
		{
			name:      "zero sweep interval",
			mutate:    func(c *Config) { c.Worker.SweepInterval = 0 },
			wantErr:   true,
			errString: "worker sweep_interval",
		},
		{
			name:      "missing ffmpeg path",
			mutate:    func(c *Config) { c.Media.FFmpegPath = "" },
			wantErr:   true,
			errString: "media ffmpeg_path",
		},
		{
			name:      "missing whisper path",
			mutate:    func(c *Config) { c.Media.WhisperPath = "" },
			wantErr:   true,
			errString: "media whisper_path",
		},
		{
			name:      "missing models dir",
			mutate:    func(c *Config) { c.Media.ModelsDir = "" },
			wantErr:   true,
			errString: "media models_dir",
		},
		{
			name:      "missing output dir",
			mutate:    func(c *Config) { c.Media.OutputDir = "" },
			wantErr:   true,
			errString: "media output_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorker()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.Validate())
		require.NoError(t, cfg.ValidateWorker())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
