/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atleaf/atleaf/pkg/config"
	"github.com/atleaf/atleaf/pkg/di"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// container holds the dependencies injected by main.
var container *di.Container

// SetContainer injects the dependency container. Called by main before
// Execute, and by tests to swap in stubs.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "atleaf",
	Short: "atleaf - Apple Transparency Log research client",
	Long: `atleaf fetches, decodes, and archives leaves from Apple's
transparency research log. It keeps a local cache of raw leaves, splits
release attestations into their tickets, and can serve the decoded data
over a small research API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfigOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}
		if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		if err := configureLogging(&cfg.Logging); err != nil {
			return err
		}

		// Store in command context
		cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
		return nil
	},
}

type contextKey string

// configKey is the command-context key the loaded configuration is
// stored under.
const configKey contextKey = "config"

// loadConfigOrDefault resolves the effective configuration. An explicit
// path must exist; with no path, the default location is used when
// present and built-in defaults otherwise.
func loadConfigOrDefault(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}

	defaultPath := config.GetDefaultConfigPath()
	if config.ConfigExists(defaultPath) {
		return config.LoadConfig(defaultPath)
	}

	return config.DefaultConfig(), nil
}

// configureLogging applies the logging section to the logrus standard
// logger.
func configureLogging(logging *config.Logging) error {
	level, err := logrus.ParseLevel(logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logging.Level, err)
	}
	logrus.SetLevel(level)

	switch logging.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return nil
}

// activeConfig returns the configuration the root command stored in the
// command context, or built-in defaults when none was stored.
func activeConfig(cmd *cobra.Command) *config.Config {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return config.DefaultConfig()
	}
	return cfg
}

// cachePath returns the leaf cache location under a data directory.
func cachePath(dataDir string) string {
	return filepath.Join(dataDir, "cache")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the cache and archive (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}
