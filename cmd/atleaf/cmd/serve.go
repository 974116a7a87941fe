/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/atleaf/atleaf/pkg/api"
	"github.com/atleaf/atleaf/pkg/cache"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research API server",
	Long: `Start the atleaf research API server over the local leaf cache.

The server exposes cached leaves, decoded releases, and a decode
endpoint using the node's codec policy. Set api_key in the config (or
--api-key) to require X-API-Key on the /api/v1 routes; /health and
/metrics are always open.

Examples:
  atleaf serve
  atleaf serve --port 9090 --bind 0.0.0.0 --api-key mysecretkey`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := activeConfig(cmd)

		if cmd.Flags().Changed("port") {
			cfg.Listen.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Listen.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.APIKey, _ = cmd.Flags().GetString("api-key")
		}

		leafCache, err := cache.Open(cachePath(cfg.DataDir))
		if err != nil {
			cmd.Printf("Error opening leaf cache: %v\n", err)
			os.Exit(1)
		}
		defer leafCache.Close()

		if container == nil {
			cmd.Printf("Error: dependency container not initialized\n")
			os.Exit(1)
		}

		serverFactory := container.GetServerFactory()
		serverStarter := serverFactory.CreateServerStarter()

		serverConfig := api.ServerConfig{
			Bind:              cfg.Listen.Bind,
			Port:              cfg.Listen.Port,
			APIKey:            cfg.APIKey,
			SupportedVersions: cfg.SupportedVersions,
			StrictTrailing:    cfg.StrictTrailing,
			VerifyHashes:      cfg.VerifyHashes,
		}

		if err := serverStarter.StartServer(leafCache, serverConfig); err != nil {
			cmd.Printf("Error starting server: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides config)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind the server to (overrides config)")
	serveCmd.Flags().String("api-key", "", "API key for the /api/v1 routes (overrides config)")
}
