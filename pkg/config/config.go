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
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// BufferSizeEnv overrides Device.ReadSize when set to a positive integer
const BufferSizeEnv = "HATROM_BUFFER_SIZE"

// Config represents the hatrom configuration
type Config struct {
	Device    Device    `yaml:"device"`
	Inventory Inventory `yaml:"inventory"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Output    Output    `yaml:"output"`
}

// Device contains the I2C EEPROM settings
type Device struct {
	Bus        string        `yaml:"bus"`
	Address    uint16        `yaml:"address"`
	ReadSize   int           `yaml:"read_size"`
	PageSize   int           `yaml:"page_size"`
	WriteDelay time.Duration `yaml:"write_delay"`
}

// Inventory contains the image catalogue settings
type Inventory struct {
	DataDir string `yaml:"data_dir"`
}

// Server contains the HTTP service settings
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Output contains CLI rendering defaults
type Output struct {
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Device: Device{
			Bus:        "/dev/i2c-0",
			Address:    0x50,
			ReadSize:   32 * 1024,
			PageSize:   16,
			WriteDelay: 10 * time.Millisecond,
		},
		Inventory: Inventory{
			DataDir: "./data",
		},
		Server: Server{
			Port:   8080,
			Bind:   "127.0.0.1",
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Output: Output{
			Format: "table",
		},
	}
}

// LoadConfig loads configuration from the specified path. Fields missing
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
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

// ApplyEnv applies environment overrides
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(BufferSizeEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", BufferSizeEnv, v)
		}
		c.Device.ReadSize = n
	}
	return nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Device.Address > 0x7F {
		return fmt.Errorf("device.address 0x%X is not a 7-bit address", c.Device.Address)
	}
	if c.Device.ReadSize <= 0 || c.Device.ReadSize > 0x10000 {
		return fmt.Errorf("device.read_size must be between 1 and 65536, got %d", c.Device.ReadSize)
	}
	if c.Device.PageSize <= 0 {
		return fmt.Errorf("device.page_size must be positive, got %d", c.Device.PageSize)
	}
	if c.Device.WriteDelay < 0 {
		return fmt.Errorf("device.write_delay must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output.format %q", c.Output.Format)
	}

	return nil
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
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Inventory.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	// Save the configuration
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./hatrom.yaml"
	}

	// For Linux/macOS, use ~/.config/hatrom/config.yaml
	return filepath.Join(homeDir, ".config", "hatrom", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
