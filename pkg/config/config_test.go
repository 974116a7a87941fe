package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, DefaultBagURL, config.BagURL)
	assert.Empty(t, config.Endpoint)
	assert.Empty(t, config.APIKey)
	assert.Equal(t, int32(3), config.MutationField)
	assert.Equal(t, []uint8{1}, config.SupportedVersions)
	assert.False(t, config.StrictTrailing)
	assert.True(t, config.VerifyHashes)
	assert.Equal(t, "127.0.0.1", config.Listen.Bind)
	assert.Equal(t, 8080, config.Listen.Port)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty supported versions",
			mutate:  func(c *Config) { c.SupportedVersions = nil },
			wantErr: "supported_versions",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Listen.Port = 0 },
			wantErr: "out of range",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Listen.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "mutation field zero",
			mutate:  func(c *Config) { c.MutationField = 0 },
			wantErr: "mutation_field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64) // 32 bytes = 64 hex characters

		// Verify it's valid hex
		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})

	t.Run("zero length", func(t *testing.T) {
		key, err := GenerateSecureKey(0)
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := &Config{
			DataDir:           "/custom/data",
			BagURL:            "https://bag.example/getBag",
			Endpoint:          "https://node.example/api/v1/leaves",
			APIKey:            "test-api-key",
			MutationField:     5,
			SupportedVersions: []uint8{1, 2},
			StrictTrailing:    true,
			VerifyHashes:      true,
			Listen: Listen{
				Bind: "0.0.0.0",
				Port: 9000,
			},
			Logging: Logging{
				Level:  "debug",
				Format: "json",
			},
		}

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "partial.yaml")
		err = os.WriteFile(configPath, []byte("data_dir: /only/this\n"), 0600)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "/only/this", loadedConfig.DataDir)
		assert.Equal(t, DefaultBagURL, loadedConfig.BagURL)
		assert.Equal(t, []uint8{1}, loadedConfig.SupportedVersions)
		assert.Equal(t, 8080, loadedConfig.Listen.Port)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "invalid.yaml")
		err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("load config with invalid values", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "badport.yaml")
		err = os.WriteFile(configPath, []byte("listen:\n  port: -1\n"), 0600)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}

func TestSaveConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	config := DefaultConfig()

	err = SaveConfig(config, configPath)
	require.NoError(t, err)

	// Verify file exists
	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Verify content
	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	// Verify config values
	assert.Equal(t, dataDir, config.DataDir)
	assert.Equal(t, 8080, config.Listen.Port)
	assert.Equal(t, "127.0.0.1", config.Listen.Bind)
	assert.Equal(t, "info", config.Logging.Level)

	// Verify the API key is generated and valid hex
	assert.NotEmpty(t, config.APIKey)
	_, err = hex.DecodeString(config.APIKey)
	assert.NoError(t, err)

	// Verify file was created
	assert.True(t, ConfigExists(configPath))

	// Verify we can load it back
	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "atleaf")
	assert.Contains(t, path, "config.yaml")
}

func TestConfigExists(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	// Create a file
	err = os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := &Config{
		DataDir:           "/test/data",
		BagURL:            "https://bag.example/getBag",
		Endpoint:          "https://node.example/leaves",
		APIKey:            "key-789",
		MutationField:     3,
		SupportedVersions: []uint8{1, 3},
		StrictTrailing:    true,
		VerifyHashes:      false,
		Listen: Listen{
			Bind: "localhost",
			Port: 9999,
		},
		Logging: Logging{
			Level:  "warn",
			Format: "json",
		},
	}

	data, err := yaml.Marshal(config)
	require.NoError(t, err)

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// Try to save to a directory that can't be created
	invalidPath := "/invalid/path/that/cannot/be/created/config.yaml"

	err := SaveConfig(config, invalidPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
