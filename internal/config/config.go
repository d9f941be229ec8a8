package config

import (
	"fmt"
	"os"
	"strings"
)

// Config represents the annotation tool configuration. Only oracle-backed
// annotation needs a config file; the pure dataset transforms are driven
// entirely by flags.
type Config struct {
	Oracle OracleConfig `toml:"oracle"`
}

// OracleConfig describes the external scoring oracle endpoint.
type OracleConfig struct {
	BaseURL            string `toml:"base_url"`
	ModelName          string `toml:"model_name"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	MaxRetries         int    `toml:"max_retries"`          // 0 = default (3)
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"` // 0 = default (120)
	Concurrency        int    `toml:"concurrency"`          // bounded worker pool size
}

// MaxConcurrency is the maximum allowed annotation concurrency.
const MaxConcurrency = 256

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if c.Oracle.ModelName == "" {
		return fmt.Errorf("oracle.model_name is required")
	}
	if c.Oracle.RateLimitPerMinute < 1 {
		return fmt.Errorf("oracle.rate_limit_per_minute must be at least 1")
	}
	if c.Oracle.Concurrency < 1 {
		return fmt.Errorf("oracle.concurrency must be at least 1")
	}
	if c.Oracle.Concurrency > MaxConcurrency {
		return fmt.Errorf("oracle.concurrency must not exceed %d (got %d)", MaxConcurrency, c.Oracle.Concurrency)
	}
	if c.Oracle.MaxRetries < 0 {
		return fmt.Errorf("oracle.max_retries must not be negative")
	}
	if c.Oracle.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("oracle.http_timeout_seconds must not be negative")
	}
	return nil
}

// Secrets holds sensitive credentials loaded from environment variables.
type Secrets struct {
	APIKeys map[string]string
}

// LoadSecrets loads oracle credentials from environment variables.
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}
	if key := os.Getenv("ORACLE_API_KEY"); key != "" {
		secrets.APIKeys["oracle"] = key
	}
	if key := os.Getenv("HF_TOKEN"); key != "" {
		secrets.APIKeys["huggingface"] = key
	}

	return secrets, nil
}

// GetAPIKey returns the API key for the oracle endpoint, preferring the
// oracle-specific key. An empty result is valid for local servers without
// auth.
func (s *Secrets) GetAPIKey() string {
	if key := s.APIKeys["oracle"]; key != "" {
		return key
	}
	return s.APIKeys["generic"]
}

// GetHFToken returns the Hugging Face Hub token, if one was provided.
func (s *Secrets) GetHFToken() string {
	return s.APIKeys["huggingface"]
}

// IsLocalEndpoint reports whether a base URL points at a local server, where
// a missing API key is expected rather than a misconfiguration.
func IsLocalEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, "://127.0.0.1") ||
		strings.Contains(endpoint, "://localhost") ||
		strings.Contains(endpoint, "://[::1]") ||
		strings.Contains(endpoint, "://0.0.0.0")
}
