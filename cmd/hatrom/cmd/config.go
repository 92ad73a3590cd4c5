/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the hatrom configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a generated API key",
	Long: `Create a configuration file populated with defaults and a freshly
generated server API key. The file is written with 0600 permissions.

Examples:
  hatrom config init
  hatrom config init --path ./hatrom.yaml --data-dir /var/lib/hatrom`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		return runConfigInit(cmd.OutOrStdout(), path, dataDir, force, printKey)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and
environment overrides are applied. The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		cfg := *a.config
		cfg.Server.APIKey = maskKey(cfg.Server.APIKey)

		format := cfg.Output.Format
		if format == "table" {
			format = "yaml"
		}
		_, err = outputValue(cmd.OutOrStdout(), format, cfg)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	configInitCmd.Flags().String("path", "", "Where to write the config (default: ~/.config/hatrom/config.yaml)")
	configInitCmd.Flags().String("data-dir", "", "Inventory directory to record in the config")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configInitCmd.Flags().Bool("print-key", false, "Print the generated API key")
}

func runConfigInit(w io.Writer, path, dataDir string, force, printKey bool) error {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if config.ConfigExists(path) && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg, err := config.BootstrapConfig(path, dataDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Configuration created at %s\n", path)
	fmt.Fprintf(w, "Inventory directory: %s\n", cfg.Inventory.DataDir)
	if printKey {
		fmt.Fprintf(w, "API key: %s\n", cfg.Server.APIKey)
	}
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 || key == autoAPIKey {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}
