package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[oracle]
base_url = "http://127.0.0.1:8000/v1"
model_name = "reward-model"
rate_limit_per_minute = 120
concurrency = 16
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Oracle.BaseURL != "http://127.0.0.1:8000/v1" {
		t.Errorf("BaseURL = %q", cfg.Oracle.BaseURL)
	}
	if cfg.Oracle.ModelName != "reward-model" {
		t.Errorf("ModelName = %q", cfg.Oracle.ModelName)
	}
	if cfg.Oracle.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d", cfg.Oracle.RateLimitPerMinute)
	}
	if cfg.Oracle.Concurrency != 16 {
		t.Errorf("Concurrency = %d", cfg.Oracle.Concurrency)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[oracle]
base_url = "http://localhost:8000/v1"
model_name = "reward-model"
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Oracle.RateLimitPerMinute != 60 {
		t.Errorf("Default RateLimitPerMinute = %d, want 60", cfg.Oracle.RateLimitPerMinute)
	}
	if cfg.Oracle.MaxRetries != 3 {
		t.Errorf("Default MaxRetries = %d, want 3", cfg.Oracle.MaxRetries)
	}
	if cfg.Oracle.HTTPTimeoutSeconds != 120 {
		t.Errorf("Default HTTPTimeoutSeconds = %d, want 120", cfg.Oracle.HTTPTimeoutSeconds)
	}
	if cfg.Oracle.Concurrency != 8 {
		t.Errorf("Default Concurrency = %d, want 8", cfg.Oracle.Concurrency)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `[oracle
base_url = broken`)
	if _, _, err := Load(path); err == nil {
		t.Error("Expected parse error for invalid TOML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Oracle: OracleConfig{
			BaseURL:            "http://localhost:8000/v1",
			ModelName:          "m",
			RateLimitPerMinute: 60,
			Concurrency:        8,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing_base_url",
			mutate:  func(c *Config) { c.Oracle.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "missing_model_name",
			mutate:  func(c *Config) { c.Oracle.ModelName = "" },
			wantErr: "model_name",
		},
		{
			name:    "zero_rate_limit",
			mutate:  func(c *Config) { c.Oracle.RateLimitPerMinute = 0 },
			wantErr: "rate_limit_per_minute",
		},
		{
			name:    "zero_concurrency",
			mutate:  func(c *Config) { c.Oracle.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "excessive_concurrency",
			mutate:  func(c *Config) { c.Oracle.Concurrency = MaxConcurrency + 1 },
			wantErr: "concurrency",
		},
		{
			name:    "negative_retries",
			mutate:  func(c *Config) { c.Oracle.MaxRetries = -1 },
			wantErr: "max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSecrets_GetAPIKey(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]string
		want string
	}{
		{name: "oracle_preferred", keys: map[string]string{"oracle": "ok", "generic": "gk"}, want: "ok"},
		{name: "generic_fallback", keys: map[string]string{"generic": "gk"}, want: "gk"},
		{name: "none", keys: map[string]string{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Secrets{APIKeys: tt.keys}
			if got := s.GetAPIKey(); got != tt.want {
				t.Errorf("GetAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadSecrets_FromEnvironment(t *testing.T) {
	t.Setenv("API_KEY", "generic-key")
	t.Setenv("ORACLE_API_KEY", "oracle-key")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets failed: %v", err)
	}
	if got := secrets.GetAPIKey(); got != "oracle-key" {
		t.Errorf("GetAPIKey() = %q, want the oracle-specific key", got)
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{endpoint: "http://127.0.0.1:8000/v1", want: true},
		{endpoint: "http://localhost:8000/v1", want: true},
		{endpoint: "http://[::1]:8000/v1", want: true},
		{endpoint: "http://0.0.0.0:8000/v1", want: true},
		{endpoint: "https://api.example.com/v1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := IsLocalEndpoint(tt.endpoint); got != tt.want {
				t.Errorf("IsLocalEndpoint(%q) = %v, want %v", tt.endpoint, got, tt.want)
			}
		})
	}
}
