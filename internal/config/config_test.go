package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, int64(2000), cfg.Analysis.WindowMs)
	assert.Equal(t, 5, cfg.Analysis.TopN)
	assert.InDelta(t, 15.0, cfg.Analysis.MinDurationS, 0.001)
	assert.InDelta(t, 60.0, cfg.Analysis.MaxDurationS, 0.001)
	assert.InDelta(t, 30.0, cfg.Analysis.MinGapS, 0.001)
	assert.InDelta(t, 0.6, cfg.Analysis.IntensityThreshold, 0.001)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.TranscodeTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "missing base dir",
			mutate:  func(c *Config) { c.Storage.BaseDir = "" },
			wantErr: "storage.base_dir",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "window too small",
			mutate:  func(c *Config) { c.Analysis.WindowMs = 50 },
			wantErr: "analysis.window_ms",
		},
		{
			name:    "inverted duration bounds",
			mutate:  func(c *Config) { c.Analysis.MaxDurationS = c.Analysis.MinDurationS },
			wantErr: "duration bounds",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Jobs.MaxConcurrent = 0 },
			wantErr: "jobs.max_concurrent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStoragePaths(t *testing.T) {
	cfg := StorageConfig{BaseDir: "/data", OutputDir: "output", TempDir: "temp"}
	assert.Equal(t, "/data/output", cfg.OutputPath())
	assert.Equal(t, "/data/temp", cfg.TempPath())
}
