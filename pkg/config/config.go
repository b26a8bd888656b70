// Package config loads application configuration from the user config
// file and the environment, environment taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	GitHubToken     string
	DashboardURL    string
	SandboxImage    string
	ConfigDir       string
}

// FileConfig represents the structure of ~/.repoflow/config.yaml
type FileConfig struct {
	APIKeys   APIKeysConfig `yaml:"api_keys"`
	GitHub    GitHubConfig  `yaml:"github"`
	Dashboard Dashboard     `yaml:"dashboard"`
	Sandbox   Sandbox       `yaml:"sandbox"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// GitHubConfig holds source-control credentials.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// Dashboard holds the progress notification endpoint.
type Dashboard struct {
	URL string `yaml:"url"`
}

// Sandbox holds container settings for analysis runs.
type Sandbox struct {
	Image string `yaml:"image"`
}

// DefaultSandboxImage is used when neither file nor environment names
// an image.
const DefaultSandboxImage = "ubuntu:24.04"

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		GitHubToken:     getEnvOrDefault("GITHUB_TOKEN", fileConfig.GitHub.Token),
		DashboardURL:    getEnvOrDefault("REPOFLOW_DASHBOARD_URL", fileConfig.Dashboard.URL),
		SandboxImage:    getEnvOrDefault("REPOFLOW_SANDBOX_IMAGE", fileConfig.Sandbox.Image),
		ConfigDir:       configDir,
	}
	if cfg.SandboxImage == "" {
		cfg.SandboxImage = DefaultSandboxImage
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".repoflow")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
