package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateOracleConfig(&cfg.Oracle); err != nil {
		return fmt.Errorf("YAML global config: oracle directive is invalid: %w", err)
	}
	if err := ValidateScanConfig(&cfg.Scan); err != nil {
		return fmt.Errorf("YAML global config: scan directive is invalid: %w", err)
	}
	if err := ValidateGitConfig(&cfg.GitClient); err != nil {
		return fmt.Errorf("YAML global config: git_client directive is invalid: %w", err)
	}
	if err := ValidateStorageConfig(&cfg.Storage); err != nil {
		return fmt.Errorf("YAML global config: storage directive is invalid: %w", err)
	}
	return nil
}

// RequireOracleCredentials fails when the oracle cannot be called at all.
func RequireOracleCredentials(cfg *Config) error {
	if strings.TrimSpace(cfg.Oracle.APIKey) == "" {
		return errs.NewConfigurationError("oracle.api_key", "no API key set (use oracle.api_key or GEMINI_API_KEY)")
	}
	if _, err := url.ParseRequestURI(cfg.Oracle.BaseURL); err != nil {
		return errs.NewConfigurationError("oracle.base_url", err.Error())
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if err := validateDuration(httpConfig.Timeout, "timeout", 30*time.Minute); err != nil {
		return err
	}
	return validateProxy(&httpConfig.Proxy)
}

// ValidateOracleConfig checks the rate limit and retry settings.
func ValidateOracleConfig(o *Oracle) error {
	if o == nil {
		return fmt.Errorf("oracle configuration is nil")
	}
	if o.Retry.MaxAttempts < 0 || o.Retry.MaxAttempts > 20 {
		return fmt.Errorf("retry.max_attempts must be between 0 and 20: %d", o.Retry.MaxAttempts)
	}

	durations := map[string]time.Duration{
		"rate_limit":        DurationValue(o.RateLimit),
		"refine_rate_limit": DurationValue(o.RefineRateLimit),
		"quota_cooldown":    DurationValue(o.QuotaCooldown),
		"retry.base_delay":  o.Retry.BaseDelay,
		"retry.max_delay":   o.Retry.MaxDelay,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 10*time.Minute); err != nil {
			return err
		}
	}
	if o.Retry.MaxDelay != 0 && o.Retry.MaxDelay < o.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay %v is lower than retry.base_delay %v", o.Retry.MaxDelay, o.Retry.BaseDelay)
	}
	return nil
}

// ValidateScanConfig checks the file selection and batching settings.
func ValidateScanConfig(s *Scan) error {
	if s == nil {
		return fmt.Errorf("scan configuration is nil")
	}
	if s.BatchSize < 0 || s.BatchSize > 100 {
		return fmt.Errorf("batch_size must be between 1 and 100: %d", s.BatchSize)
	}
	if s.MaxContextBytes < 0 {
		return fmt.Errorf("max_context_bytes cannot be negative: %d", s.MaxContextBytes)
	}
	for _, ext := range s.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

// ValidateGitConfig checks if the Git configurations have valid values.
func ValidateGitConfig(gitConfig *GitClient) error {
	if gitConfig == nil {
		return fmt.Errorf("git configuration is nil")
	}
	if gitConfig.Depth < 0 {
		return fmt.Errorf("depth cannot be negative: %d", gitConfig.Depth)
	}
	return validateDuration(gitConfig.Timeout, "timeout", 1*time.Hour)
}

// ValidateStorageConfig checks where persisted reports go.
func ValidateStorageConfig(s *Storage) error {
	if s == nil {
		return fmt.Errorf("storage configuration is nil")
	}
	switch s.Type {
	case "", StorageLocal:
		return nil
	case StorageS3:
		if s.Bucket == "" {
			return fmt.Errorf("bucket must be set for the %q storage", StorageS3)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage type %q", s.Type)
	}
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}
	return validatePort(proxy.Port)
}

// validateHost ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}
	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
