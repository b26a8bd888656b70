package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api_keys:
  anthropic: file-anthropic-key
  openai: file-openai-key
github:
  token: file-token
dashboard:
  url: https://dash.example.com/alerts
sandbox:
  image: golang:1.24
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := loadFileConfig(path)
	if cfg.APIKeys.Anthropic != "file-anthropic-key" {
		t.Fatalf("unexpected anthropic key %q", cfg.APIKeys.Anthropic)
	}
	if cfg.GitHub.Token != "file-token" {
		t.Fatalf("unexpected token %q", cfg.GitHub.Token)
	}
	if cfg.Dashboard.URL != "https://dash.example.com/alerts" {
		t.Fatalf("unexpected dashboard URL %q", cfg.Dashboard.URL)
	}
	if cfg.Sandbox.Image != "golang:1.24" {
		t.Fatalf("unexpected sandbox image %q", cfg.Sandbox.Image)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	cfg := loadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.APIKeys.Anthropic != "" {
		t.Fatal("expected empty config for missing file")
	}
}

func TestHasAdapter(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "key"}
	if !cfg.HasAdapter("anthropic") {
		t.Fatal("expected anthropic adapter to be available")
	}
	if cfg.HasAdapter("openai") {
		t.Fatal("expected openai adapter to be unavailable")
	}
	if cfg.HasAdapter("unheard-of") {
		t.Fatal("unknown adapter must not be available")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("REPOFLOW_TEST_VAR", "from-env")
	if got := getEnvOrDefault("REPOFLOW_TEST_VAR", "fallback"); got != "from-env" {
		t.Fatalf("expected env value, got %q", got)
	}
	if got := getEnvOrDefault("REPOFLOW_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
