/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/atleaf/atleaf/pkg/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the atleaf configuration file",
	Long: `Create the atleaf configuration file with sane defaults and a
generated API key for serve mode.

This command will:
- Create the configuration directory
- Write a config file pointing at the public research log bag
- Generate a client API key for the research API

Examples:
  atleaf init
  atleaf init --config ./atleaf.yaml --data-dir ./mydata
  atleaf init --force --print-key`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The config file may not exist yet; skip the root command's
		// loading.
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", configPath)
			return
		}

		cmd.Printf("🔧 Bootstrapping atleaf configuration...\n")

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			cmd.Printf("Error bootstrapping config: %v\n", err)
			os.Exit(1)
		}

		cmd.Printf("✅ Configuration created at %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("Bag URL: %s\n", cfg.BagURL)

		if printKey {
			cmd.Printf("\n🔑 Generated API key: %s\n", cfg.APIKey)
			cmd.Printf("⚠️  Store this key securely! It is also saved in %s\n", configPath)
		}

		cmd.Printf("\nYou can now fetch leaves with:\n")
		cmd.Printf("  atleaf fetch --from 0 --to 100\n")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key to the console")
}
