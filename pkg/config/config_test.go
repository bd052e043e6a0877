package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes content as config.yaml in a temp dir and chdirs there
// so Load() picks it up.
func writeConfig(t *testing.T, content string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeConfig(t, `
port: "3443"
env: "test"
auth:
  enable_verification: false
database:
  host: "db.example.com"
  user: "crm"
  database: "pisoforte_crm"
redis:
  host: "redis.example.com"
`)

	// Clear env vars that might interfere with test
	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")

	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4443" {
		t.Errorf("expected BaseURL auto-derived from PORT, got %s", cfg.BaseURL)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host from yaml, got %s", cfg.Database.Host)
	}
	if cfg.Insights.MaxRowLimit != 500 {
		t.Errorf("expected default MaxRowLimit=500, got %d", cfg.Insights.MaxRowLimit)
	}
	if cfg.Insights.CacheTTLMinutes != 30 {
		t.Errorf("expected default CacheTTLMinutes=30, got %d", cfg.Insights.CacheTTLMinutes)
	}
	if cfg.AI.Provider != "openai" {
		t.Errorf("expected default AI provider openai, got %s", cfg.AI.Provider)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	if _, err := Load("test"); err == nil {
		t.Error("expected error when config.yaml is missing")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	writeConfig(t, `
env: "test"
auth:
  enable_verification: true
`)
	os.Unsetenv("AUTH_JWT_SECRET")

	_, err := Load("test")
	if err == nil {
		t.Fatal("expected error when verification is enabled without a secret")
	}
	if !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Errorf("error should name the missing secret, got: %v", err)
	}
}

func TestLoad_RejectsUnknownAIProvider(t *testing.T) {
	writeConfig(t, `
env: "test"
auth:
  enable_verification: false
ai:
  provider: "oracle"
`)

	if _, err := Load("test"); err == nil {
		t.Error("expected error for unsupported ai provider")
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "insights",
		Password: "s3cret",
		Database: "pisoforte_crm",
		SSLMode:  "disable",
	}

	got := cfg.ConnectionString()
	want := "host=localhost port=5432 user=insights password=s3cret dbname=pisoforte_crm sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
