/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/api"
	"github.com/ssargent/hatrom/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the hatrom REST API server. It decodes and encodes images and
exposes the inventory under /api/v1, with Prometheus metrics on /metrics.

Requests must carry the configured key in the X-API-Key header. An
api_key of "auto" generates a key for this run and logs it; an empty
api_key disables authentication.

Examples:
  hatrom serve
  hatrom serve --port 9300 --bind 0.0.0.0 --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		srv := a.config.Server
		if cmd.Flags().Changed("port") {
			srv.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			srv.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			srv.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		dataDir := a.config.Inventory.DataDir
		if cmd.Flags().Changed("data-dir") {
			dataDir, _ = cmd.Flags().GetString("data-dir")
		}

		serverConfig, err := resolveServerConfig(srv)
		if err != nil {
			return err
		}
		if srv.APIKey == autoAPIKey {
			a.logger.Warn("generated API key for this run; set server.api_key to keep it stable",
				"api_key", serverConfig.APIKey)
		}
		if serverConfig.APIKey == "" {
			a.logger.Warn("API key authentication is disabled")
		}

		store, err := openInventory(dataDir, a)
		if err != nil {
			return err
		}
		defer store.Close()

		return api.StartServer(cmd.Context(), store, serverConfig, a.logger)
	},
}

// autoAPIKey asks serve to generate a key at startup
const autoAPIKey = "auto"

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default from config)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to (default from config)")
	serveCmd.Flags().String("api-key", "", "API key for X-API-Key authentication (default from config)")
	serveCmd.Flags().String("data-dir", "", "Inventory directory (default from config)")
}

// resolveServerConfig turns the server settings into an api config,
// generating a key when asked to
func resolveServerConfig(srv config.Server) (api.ServerConfig, error) {
	out := api.ServerConfig{
		Port:   srv.Port,
		Bind:   srv.Bind,
		APIKey: srv.APIKey,
	}
	if srv.APIKey == autoAPIKey {
		key, err := config.GenerateSecureKey(32)
		if err != nil {
			return out, fmt.Errorf("failed to generate API key: %w", err)
		}
		out.APIKey = key
	}
	return out, nil
}
