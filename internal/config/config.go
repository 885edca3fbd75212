// Package config provides configuration management for clipforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultWindowMs        = 2000
	defaultSmoothingWindow = 3
	defaultMaxComments     = 200

	defaultTopN               = 5
	defaultMinDurationS       = 15.0
	defaultMaxDurationS       = 60.0
	defaultMinGapS            = 30.0
	defaultIntensityThreshold = 0.6

	defaultMaxConcurrentJobs = 2
	defaultDownloadTimeout   = 3 * time.Minute
	defaultAnalysisTimeout   = 3 * time.Minute
	defaultTranscodeTimeout  = 10 * time.Minute
	defaultSubtitleTimeout   = 30 * time.Second
	defaultOutputRetention   = 7 * 24 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	// OutputRetention is how long finished clips are kept before the
	// retention sweep removes them. Zero disables the sweep.
	OutputRetention time.Duration `mapstructure:"output_retention"`
	// CleanupCron is the 6-field cron spec for the retention sweep.
	CleanupCron string `mapstructure:"cleanup_cron"`
}

// ToolsConfig holds external tool binary configuration.
type ToolsConfig struct {
	YtDlpPath   string `mapstructure:"ytdlp_path"`   // Path to yt-dlp binary (empty = auto-detect)
	FFmpegPath  string `mapstructure:"ffmpeg_path"`  // Path to ffmpeg binary (empty = auto-detect)
	FFprobePath string `mapstructure:"ffprobe_path"` // Path to ffprobe binary (empty = auto-detect)
	// WhisperPath is the local transcription binary (empty = transcription unavailable).
	WhisperPath string `mapstructure:"whisper_path"`
	// WhisperModel is the model id passed to the transcription binary.
	WhisperModel string `mapstructure:"whisper_model"`
}

// AnalysisConfig holds signal acquisition and fusion configuration.
type AnalysisConfig struct {
	WindowMs        int64 `mapstructure:"window_ms"`
	SmoothingWindow int   `mapstructure:"smoothing_window"`
	MaxComments     int   `mapstructure:"max_comments"`

	// Detection defaults; request settings override per analyze call.
	TopN               int     `mapstructure:"top_n"`
	MinDurationS       float64 `mapstructure:"min_duration_s"`
	MaxDurationS       float64 `mapstructure:"max_duration_s"`
	MinGapS            float64 `mapstructure:"min_gap_s"`
	IntensityThreshold float64 `mapstructure:"intensity_threshold"`
}

// JobsConfig holds cut-job execution configuration.
type JobsConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	AnalysisTimeout  time.Duration `mapstructure:"analysis_timeout"`
	TranscodeTimeout time.Duration `mapstructure:"transcode_timeout"`
	SubtitleTimeout  time.Duration `mapstructure:"subtitle_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CLIPFORGE and use underscores for
// nesting. Example: CLIPFORGE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/clipforge")
		v.AddConfigPath("$HOME/.clipforge")
	}

	v.SetEnvPrefix("CLIPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.output_retention", defaultOutputRetention)
	v.SetDefault("storage.cleanup_cron", "0 0 3 * * *")

	// Tools defaults
	v.SetDefault("tools.ytdlp_path", "")
	v.SetDefault("tools.ffmpeg_path", "")
	v.SetDefault("tools.ffprobe_path", "")
	v.SetDefault("tools.whisper_path", "")
	v.SetDefault("tools.whisper_model", "base")

	// Analysis defaults
	v.SetDefault("analysis.window_ms", defaultWindowMs)
	v.SetDefault("analysis.smoothing_window", defaultSmoothingWindow)
	v.SetDefault("analysis.max_comments", defaultMaxComments)
	v.SetDefault("analysis.top_n", defaultTopN)
	v.SetDefault("analysis.min_duration_s", defaultMinDurationS)
	v.SetDefault("analysis.max_duration_s", defaultMaxDurationS)
	v.SetDefault("analysis.min_gap_s", defaultMinGapS)
	v.SetDefault("analysis.intensity_threshold", defaultIntensityThreshold)

	// Jobs defaults
	v.SetDefault("jobs.max_concurrent", defaultMaxConcurrentJobs)
	v.SetDefault("jobs.download_timeout", defaultDownloadTimeout)
	v.SetDefault("jobs.analysis_timeout", defaultAnalysisTimeout)
	v.SetDefault("jobs.transcode_timeout", defaultTranscodeTimeout)
	v.SetDefault("jobs.subtitle_timeout", defaultSubtitleTimeout)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Analysis.WindowMs < 100 {
		return fmt.Errorf("analysis.window_ms must be at least 100")
	}
	if c.Analysis.SmoothingWindow < 1 {
		return fmt.Errorf("analysis.smoothing_window must be at least 1")
	}
	if c.Analysis.MinDurationS <= 0 || c.Analysis.MaxDurationS <= c.Analysis.MinDurationS {
		return fmt.Errorf("analysis duration bounds must satisfy 0 < min < max")
	}

	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("jobs.max_concurrent must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return filepath.Join(c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}
