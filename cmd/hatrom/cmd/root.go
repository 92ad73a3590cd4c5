/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/config"
	"github.com/ssargent/hatrom/pkg/logging"
)

type appKey struct{}

// app is the per-invocation state built by the root command
type app struct {
	config *config.Config
	logger *slog.Logger
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hatrom",
	Short: "hatrom - Raspberry Pi HAT EEPROM toolkit",
	Long: `hatrom decodes, builds, verifies and programs Raspberry Pi HAT EEPROM
images, and keeps an inventory of the images it has seen.

Settings come from ~/.config/hatrom/config.yaml when it exists; flags
override the file and HATROM_BUFFER_SIZE overrides device.read_size.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("format") {
			cfg.Output.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}

		logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		// Store in command context
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{config: cfg, logger: logger}))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/hatrom/config.yaml)")
	rootCmd.PersistentFlags().String("format", "", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the named config file, or the default one when it exists,
// and applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	switch {
	case path != "":
		cfg, err = config.LoadConfig(path)
	case config.ConfigExists(config.GetDefaultConfigPath()):
		cfg, err = config.LoadConfig(config.GetDefaultConfigPath())
	default:
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// appFrom returns the state stored by the root command
func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return a, nil
}
