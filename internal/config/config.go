// Package config provides configuration management for Kinvault.
// Settings come from three layers: built-in defaults, an optional YAML
// config file, and environment variables with the KINVAULT_ prefix.
// Later layers win, so an environment variable always overrides the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Kinvault agent.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Security SecurityConfig `yaml:"security"`
	Agent    AgentConfig    `yaml:"agent"`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // Path to the sqlite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // Postgres connection string (required when engine is postgres)
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider       string `yaml:"provider"`        // LLM provider: ollama, openai (default: ollama)
	Model          string `yaml:"model"`           // Model name (provider default when empty)
	BaseURL        string `yaml:"base_url"`        // Provider base URL (provider default when empty)
	APIKey         string `yaml:"api_key"`         // API key for hosted providers
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Per-request timeout (provider default when 0)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode            string `yaml:"mode"`             // Security mode: development, production (default: development)
	ConsentToken    string `yaml:"consent_token"`    // Static consent token presented by callers
	VaultPassphrase string `yaml:"vault_passphrase"` // Passphrase the record key is derived from
}

// AgentConfig contains per-user agent settings.
type AgentConfig struct {
	UserID            string `yaml:"user_id"`             // Vault owner identity (default: default)
	StartupWindowDays int    `yaml:"startup_window_days"` // Event lookahead on startup checks (default: 30)
	ListingWindowDays int    `yaml:"listing_window_days"` // Event lookahead for date listings (default: 60)
}

// LoadConfig loads configuration from environment variables over built-in
// defaults. All environment variables use the KINVAULT_ prefix.
func LoadConfig() (*Config, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration with an optional YAML file overlay.
// Precedence is environment variables, then the file, then defaults. An
// empty path skips the file layer; a named file that does not exist is an
// error so a typoed path never silently falls back to defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the layering cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres engine requires a connection string")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	if c.Security.Mode == "production" {
		if c.Security.ConsentToken == "" {
			return fmt.Errorf("config: production mode requires a consent token")
		}
		if c.Security.VaultPassphrase == "" {
			return fmt.Errorf("config: production mode requires a vault passphrase")
		}
	}

	return nil
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider: "ollama",
		},
		Security: SecurityConfig{
			Mode: "development",
		},
		Agent: AgentConfig{
			UserID:            "default",
			StartupWindowDays: 30,
			ListingWindowDays: 60,
		},
	}
}

// applyEnv overrides cfg with any KINVAULT_ environment variables that are
// set. The current field value is the fallback, so the file layer survives
// where no variable is present.
func applyEnv(cfg *Config) {
	cfg.Storage.Engine = getEnv("KINVAULT_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("KINVAULT_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("KINVAULT_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("KINVAULT_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("KINVAULT_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("KINVAULT_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("KINVAULT_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.TimeoutSeconds = getEnvInt("KINVAULT_LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Security.Mode = getEnv("KINVAULT_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.ConsentToken = getEnv("KINVAULT_CONSENT_TOKEN", cfg.Security.ConsentToken)
	cfg.Security.VaultPassphrase = getEnv("KINVAULT_VAULT_PASSPHRASE", cfg.Security.VaultPassphrase)

	cfg.Agent.UserID = getEnv("KINVAULT_USER_ID", cfg.Agent.UserID)
	cfg.Agent.StartupWindowDays = getEnvInt("KINVAULT_STARTUP_WINDOW_DAYS", cfg.Agent.StartupWindowDays)
	cfg.Agent.ListingWindowDays = getEnvInt("KINVAULT_LISTING_WINDOW_DAYS", cfg.Agent.ListingWindowDays)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
