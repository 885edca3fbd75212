// Package cmd implements the CLI commands for clipforge.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/observability"
	"github.com/clipforge/clipforge/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "clipforge",
	Short:   "Highlight clip extraction service",
	Version: version.Short(),
	Long: `clipforge finds the most engaging moments in a video and cuts them
into short vertical clips ready for publishing.

It fuses viewer-engagement heatmaps, audio loudness, scene changes, and
comment timestamps to locate peaks, snaps clip boundaries to silences
and scene cuts, and scores each candidate's virality. Cutting runs as
background jobs with live progress over SSE.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// PersistentPreRunE is set here to avoid an initialization cycle:
	// initLogging reads rootCmd's persistent flags.
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// These flags are NOT bound to viper. Binding would make the flag's
	// default value shadow env and config values; instead Changed() gates
	// the override so priority stays: flag > env > config > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./clipforge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig reads the config file and environment variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/clipforge")
		viper.SetConfigType("yaml")
		viper.SetConfigName("clipforge")
	}

	viper.SetEnvPrefix("CLIPFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the default slog logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only when explicitly provided
//  2. Environment variables (CLIPFORGE_LOGGING_LEVEL, CLIPFORGE_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, json)
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	logCfg := config.LoggingConfig{
		Level:      strings.ToLower(level),
		Format:     strings.ToLower(format),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)
	return nil
}
