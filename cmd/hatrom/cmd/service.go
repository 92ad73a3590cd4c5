/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/config"
)

const (
	serviceName = "hatrom.service"
	unitPath    = "/etc/systemd/system/" + serviceName
)

// runCommand runs a system command with the process's stdio. Tests replace it.
var runCommand = func(command string, args ...string) error {
	c := exec.Command(command, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the hatrom API server as a systemd service",
	Long: `Manage "hatrom serve" as a systemd service, typically on the
Raspberry Pi used as a HAT programming station.

The service runs with a restricted filesystem view and restarts on
failure.`,
}

// installServiceCmd represents the service install command
var installServiceCmd = &cobra.Command{
	Use:   "install",
	Short: "Install hatrom serve as a systemd service",
	Long: `Install "hatrom serve" as a systemd service.

This will:
- Create or reuse the configuration file
- Generate the systemd unit file
- Enable and optionally start the service

Examples:
  sudo hatrom service install
  sudo hatrom service install --data-dir /var/lib/hatrom --user hatrom`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configPath, _ := cmd.Flags().GetString("config")
		user, _ := cmd.Flags().GetString("user")
		binary, _ := cmd.Flags().GetString("binary")
		startNow, _ := cmd.Flags().GetBool("start")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if os.Geteuid() != 0 {
			return fmt.Errorf("service install requires root privileges; run with: sudo hatrom service install")
		}

		cfg, err := prepareServiceConfig(configPath, dataDir)
		if err != nil {
			return err
		}

		if err := os.WriteFile(unitPath, []byte(systemdUnit(cfg, binary, configPath, user)), 0o644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}
		if err := runCommand("systemctl", "enable", serviceName); err != nil {
			return fmt.Errorf("failed to enable service: %w", err)
		}
		cmd.Printf("Service enabled: %s\n", serviceName)

		if startNow {
			if err := runCommand("systemctl", "start", serviceName); err != nil {
				return fmt.Errorf("failed to start service: %w", err)
			}
			cmd.Printf("Service started\n")
		}

		cmd.Printf("Config: %s\n", configPath)
		cmd.Printf("Inventory: %s\n", cfg.Inventory.DataDir)
		cmd.Printf("Listening on: %s:%d\n", cfg.Server.Bind, cfg.Server.Port)
		cmd.Printf("To view logs: sudo journalctl -u %s -f\n", serviceName)
		return nil
	},
}

// uninstallServiceCmd represents the service uninstall command
var uninstallServiceCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the hatrom systemd service",
	Long: `Stop, disable and remove the hatrom systemd service. Configuration
and inventory data are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("service uninstall requires root privileges; run with: sudo hatrom service uninstall")
		}

		// ignore errors if already stopped
		_ = runCommand("systemctl", "stop", serviceName)

		if err := runCommand("systemctl", "disable", serviceName); err != nil {
			cmd.Printf("Warning: could not disable service: %v\n", err)
		}

		if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}

		cmd.Printf("Service uninstalled; configuration and data files were not removed\n")
		return nil
	},
}

// logsServiceCmd represents the service logs command
var logsServiceCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show hatrom service logs",
	Long: `Show hatrom service logs using journalctl.

Examples:
  hatrom service logs
  hatrom service logs -f`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")
		return runCommand("journalctl", journalArgs(follow, lines)...)
	},
}

// systemctlCmd builds a service subcommand that forwards to systemctl
func systemctlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runCommand("systemctl", action, serviceName); err != nil {
				return fmt.Errorf("systemctl %s %s: %w", action, serviceName, err)
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.AddCommand(
		installServiceCmd,
		uninstallServiceCmd,
		logsServiceCmd,
		systemctlCmd("start", "Start the hatrom service"),
		systemctlCmd("stop", "Stop the hatrom service"),
		systemctlCmd("restart", "Restart the hatrom service"),
		systemctlCmd("status", "Show hatrom service status"),
	)

	installServiceCmd.Flags().String("data-dir", "/var/lib/hatrom", "Inventory directory for the service")
	installServiceCmd.Flags().String("user", "hatrom", "User to run the service as")
	installServiceCmd.Flags().String("binary", "/usr/local/bin/hatrom", "Path of the installed hatrom binary")
	installServiceCmd.Flags().Bool("start", true, "Start the service after installation")

	logsServiceCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsServiceCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
}

// prepareServiceConfig loads or bootstraps the config and pins the
// inventory directory to dataDir
func prepareServiceConfig(configPath, dataDir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if config.ConfigExists(configPath) {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.BootstrapConfig(configPath, dataDir)
	}
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		cfg.Inventory.DataDir = dataDir
	}
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// systemdUnit renders the unit file for "hatrom serve"
func systemdUnit(cfg *config.Config, binary, configPath, user string) string {
	return fmt.Sprintf(`[Unit]
Description=hatrom HAT EEPROM API server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=read-only
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.Inventory.DataDir, filepath.Dir(configPath))
}

func journalArgs(follow bool, lines int) []string {
	args := []string{"-u", serviceName}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, fmt.Sprintf("-n%d", lines))
	}
	return args
}
