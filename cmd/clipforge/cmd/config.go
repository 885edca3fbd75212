package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing clipforge configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all configuration options after merging defaults, the config
file, and environment variables. Redirect the output to a file to create
a configuration template:

  clipforge config dump > clipforge.yaml

Environment variables use the CLIPFORGE_ prefix and underscores for
nesting. Example: server.port -> CLIPFORGE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)
	for _, key := range viper.AllKeys() {
		v.Set(key, viper.Get(key))
	}

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}

	fmt.Print(string(data))
	return nil
}
