package config

import (
	"crypto/tls"
	"time"
)

const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com"
	DefaultModel           = "gemini-2.0-flash-thinking-exp-01-21"
	DefaultRateLimit       = 12 * time.Second
	DefaultRefineRateLimit = 12 * time.Second
	DefaultQuotaCooldown   = 12 * time.Second
	DefaultMaxAttempts     = 4
	DefaultRetryBaseDelay  = 4 * time.Second
	DefaultRetryMaxDelay   = 30 * time.Second
	DefaultBatchSize       = 5
	DefaultOutputFolder    = "."
	DefaultMaxContextBytes = 4 << 20
	DefaultCacheFile       = ".llmscan-cache.db"
	DefaultGitDepth        = 1
	DefaultGitTimeout      = 10 * time.Minute

	StorageLocal = "local"
	StorageS3    = "s3"
)

// DefaultExtensions is the allow-list of code file extensions scanned by default.
var DefaultExtensions = []string{
	".py", ".js", ".java", ".c", ".cpp", ".rb", ".go", ".ts", ".cs", ".php",
	".swift", ".kt", ".rs", ".scala", ".sh", ".bat", ".ps1", ".html", ".css",
	".xml", ".json", ".yaml", ".yml",
}

// DefaultExclude keeps VCS metadata out of the scan.
var DefaultExclude = []string{".git/**"}

// BaseHTTPConfig holds common HTTP client configuration settings.
type BaseHTTPConfig struct {
	Timeout         time.Duration // Timeout for requests
	TLSClientConfig *tls.Config   // TLS configuration
	Proxy           string        // Proxy address
}

// RestyHTTPClientConfig holds additional configuration settings for the Resty HTTP client.
type RestyHTTPClientConfig struct {
	BaseHTTPConfig
	Debug bool // Flag to enable Resty debug mode
}

// DefaultHTTPConfig returns a base configuration for HTTP clients with default values.
// Oracle calls can be slow, so the timeout is generous.
func DefaultHTTPConfig() BaseHTTPConfig {
	return BaseHTTPConfig{
		Timeout: 5 * time.Minute,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12, // Enforce a minimum TLS version
			InsecureSkipVerify: false,
		},
		Proxy: "",
	}
}

// DefaultRestyConfig returns a default configuration for the Resty HTTP client, extending the base HTTP configuration.
func DefaultRestyConfig() RestyHTTPClientConfig {
	return RestyHTTPClientConfig{
		BaseHTTPConfig: DefaultHTTPConfig(),
		Debug:          false,
	}
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default value.
func ApplyDefaults(cfg *Config) {
	o := &cfg.Oracle
	o.BaseURL = SetThen(o.BaseURL, DefaultBaseURL)
	o.Model = SetThen(o.Model, DefaultModel)
	o.RefineModel = SetThen(o.RefineModel, o.Model)
	o.RateLimit = SetThen(o.RateLimit, DurationPtr(DefaultRateLimit))
	o.RefineRateLimit = SetThen(o.RefineRateLimit, DurationPtr(DefaultRefineRateLimit))
	o.QuotaCooldown = SetThen(o.QuotaCooldown, DurationPtr(DefaultQuotaCooldown))
	o.Retry.MaxAttempts = SetThen(o.Retry.MaxAttempts, DefaultMaxAttempts)
	o.Retry.BaseDelay = SetThen(o.Retry.BaseDelay, DefaultRetryBaseDelay)
	o.Retry.MaxDelay = SetThen(o.Retry.MaxDelay, DefaultRetryMaxDelay)

	s := &cfg.Scan
	if len(s.Extensions) == 0 {
		s.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if s.Exclude == nil {
		s.Exclude = append([]string(nil), DefaultExclude...)
	}
	s.BatchSize = SetThen(s.BatchSize, DefaultBatchSize)
	s.OutputFolder = SetThen(s.OutputFolder, DefaultOutputFolder)
	s.MaxContextBytes = SetThen(s.MaxContextBytes, DefaultMaxContextBytes)

	g := &cfg.GitClient
	g.Depth = SetThen(g.Depth, DefaultGitDepth)
	g.Timeout = SetThen(g.Timeout, DefaultGitTimeout)

	tls := &cfg.HTTPClient.TLSClientConfig
	tls.Verify = SetThen(tls.Verify, BoolPtr(true))

	cfg.Cache.Path = SetThen(cfg.Cache.Path, DefaultCacheFile)
	cfg.Storage.Type = SetThen(cfg.Storage.Type, StorageLocal)
}

// IsCacheEnabled reports whether first-pass responses are cached on disk.
func IsCacheEnabled(cfg *Config) bool {
	return GetBoolValue(cfg, "Cache.Enabled", false)
}

// IsSarifEnabled reports whether a SARIF copy of each report is written.
func IsSarifEnabled(cfg *Config) bool {
	return GetBoolValue(cfg, "Scan.Sarif", false)
}
