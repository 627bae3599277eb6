package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port     int    `koanf:"port"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"server"`

	AI struct {
		Provider    string `koanf:"provider"`
		APIKey      string `koanf:"api_key"`
		BaseURL     string `koanf:"base_url"`
		Model       string `koanf:"model"`
		MaxAttempts int    `koanf:"max_attempts"`
	} `koanf:"ai"`

	Quota struct {
		DailyLimit     int `koanf:"daily_limit"`
		MaxTrackedKeys int `koanf:"max_tracked_keys"`
	} `koanf:"quota"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":            8888,
		"server.log_level":       "info",
		"ai.provider":            "openai",
		"ai.model":               "gpt-4o-mini",
		"ai.max_attempts":        3,
		"quota.daily_limit":      10,
		"quota.max_tracked_keys": 10000,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./reviewloop.toml", "$HOME/.reviewloop.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix REVIEWLOOP_. Only the
	// first underscore becomes a separator so keys like ai.api_key and
	// server.log_level survive the mapping.
	k.Load(env.Provider("REVIEWLOOP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "REVIEWLOOP_")), "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Reviewloop Configuration

[server]
port = 8888
log_level = "info"

[ai]
provider = "openai"
api_key = "your-api-key"
model = "gpt-4o-mini"
max_attempts = 3

[quota]
daily_limit = 10
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.AI.Provider == "" {
		return fmt.Errorf("ai provider is required")
	}
	if config.AI.APIKey == "" {
		return fmt.Errorf("ai api_key is required")
	}
	if config.AI.Model == "" {
		return fmt.Errorf("ai model is required")
	}
	if config.AI.MaxAttempts < 1 {
		return fmt.Errorf("ai max_attempts must be at least 1")
	}
	if config.Quota.DailyLimit < 1 {
		return fmt.Errorf("quota daily_limit must be at least 1")
	}
	return nil
}
