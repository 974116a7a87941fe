/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultBagURL is the discovery bag the research log publishes its
// endpoints through.
const DefaultBagURL = "https://init-kt-prod.ess.apple.com/init/getBag?ix=5&p=atresearch"

// Config represents the atleaf configuration
type Config struct {
	DataDir           string  `yaml:"data_dir"`
	BagURL            string  `yaml:"bag_url"`
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	MutationField     int32   `yaml:"mutation_field"`
	SupportedVersions []uint8 `yaml:"supported_versions"`
	StrictTrailing    bool    `yaml:"strict_trailing"`
	VerifyHashes      bool    `yaml:"verify_hashes"`
	Listen            Listen  `yaml:"listen"`
	Logging           Logging `yaml:"logging"`
}

// Listen contains the serve-mode listener configuration
type Listen struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:           "./data",
		BagURL:            DefaultBagURL,
		Endpoint:          "",
		APIKey:            "",
		MutationField:     3,
		SupportedVersions: []uint8{1},
		StrictTrailing:    false,
		VerifyHashes:      true,
		Listen: Listen{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values no command can work with
func (c *Config) Validate() error {
	if len(c.SupportedVersions) == 0 {
		return fmt.Errorf("supported_versions must list at least one version")
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range [1, 65535]", c.Listen.Port)
	}
	if c.MutationField < 1 {
		return fmt.Errorf("mutation_field must be a positive protobuf field number, got %d", c.MutationField)
	}
	return nil
}

// LoadConfig loads configuration from the specified path. Fields absent
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key
// and writes it to configPath
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.APIKey = apiKey

	// Save the configuration
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	// Use OS-specific default locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./atleaf.yaml"
	}

	// For Linux/macOS, use ~/.config/atleaf/config.yaml
	configDir := filepath.Join(homeDir, ".config", "atleaf")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
