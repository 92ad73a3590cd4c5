package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "/dev/i2c-0", config.Device.Bus)
	assert.Equal(t, uint16(0x50), config.Device.Address)
	assert.Equal(t, 32768, config.Device.ReadSize)
	assert.Equal(t, 16, config.Device.PageSize)
	assert.Equal(t, 10*time.Millisecond, config.Device.WriteDelay)
	assert.Equal(t, "./data", config.Inventory.DataDir)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Bind)
	assert.Equal(t, "auto", config.Server.APIKey)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, "table", config.Output.Format)
	assert.NoError(t, config.Validate())
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64) // 32 bytes = 64 hex characters

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
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		expectedConfig := &Config{
			Device: Device{
				Bus:        "/dev/i2c-9",
				Address:    0x51,
				ReadSize:   4096,
				PageSize:   32,
				WriteDelay: 5 * time.Millisecond,
			},
			Inventory: Inventory{DataDir: "/custom/data"},
			Server: Server{
				Port:   9000,
				Bind:   "0.0.0.0",
				APIKey: "test-api-key",
			},
			Logging: Logging{Level: "debug", Format: "json"},
			Output:  Output{Format: "yaml"},
		}

		err := SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := "device:\n  address: 0x57\n  write_delay: 20ms\nlogging:\n  level: warn\n"
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x57), config.Device.Address)
		assert.Equal(t, 20*time.Millisecond, config.Device.WriteDelay)
		assert.Equal(t, "/dev/i2c-0", config.Device.Bus)
		assert.Equal(t, 32768, config.Device.ReadSize)
		assert.Equal(t, "warn", config.Logging.Level)
		assert.Equal(t, "text", config.Logging.Format)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("load invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		err := os.WriteFile(configPath, []byte("device:\n  address: 0x80\n"), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config file")
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "address above 7 bits", mutate: func(c *Config) { c.Device.Address = 0x80 }},
		{name: "zero read size", mutate: func(c *Config) { c.Device.ReadSize = 0 }},
		{name: "read size beyond word address", mutate: func(c *Config) { c.Device.ReadSize = 0x10001 }},
		{name: "zero page size", mutate: func(c *Config) { c.Device.PageSize = 0 }},
		{name: "negative write delay", mutate: func(c *Config) { c.Device.WriteDelay = -time.Millisecond }},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "trace" }},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "logfmt" }},
		{name: "unknown output format", mutate: func(c *Config) { c.Output.Format = "xml" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("override read size", func(t *testing.T) {
		t.Setenv(BufferSizeEnv, "4096")
		config := DefaultConfig()
		require.NoError(t, config.ApplyEnv())
		assert.Equal(t, 4096, config.Device.ReadSize)
	})

	t.Run("unset leaves default", func(t *testing.T) {
		t.Setenv(BufferSizeEnv, "")
		config := DefaultConfig()
		require.NoError(t, config.ApplyEnv())
		assert.Equal(t, 32768, config.Device.ReadSize)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv(BufferSizeEnv, "lots")
		config := DefaultConfig()
		assert.Error(t, config.ApplyEnv())

		t.Setenv(BufferSizeEnv, "-1")
		assert.Error(t, config.ApplyEnv())
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := DefaultConfig()

	err := SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, config.Inventory.DataDir)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NotEqual(t, "auto", config.Server.APIKey)
	_, err = hex.DecodeString(config.Server.APIKey)
	assert.NoError(t, err)

	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "hatrom")
	assert.Contains(t, path, "config.yaml")
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err := os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := DefaultConfig()
	config.Device.WriteDelay = 1500 * time.Microsecond

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "write_delay: 1.5ms")

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// a regular file blocks directory creation even for root
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := SaveConfig(config, filepath.Join(blocker, "sub", "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
