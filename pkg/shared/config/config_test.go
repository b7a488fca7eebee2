package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yml")
	content := `
logger:
  level: debug
oracle:
  model: test-model
  rate_limit: 2s
  retry:
    max_attempts: 6
    base_delay: 1s
    max_delay: 8s
scan:
  extensions: [".py"]
  batch_size: 3
cache:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "test-model", cfg.Oracle.Model)
	assert.Equal(t, "test-model", cfg.Oracle.RefineModel)
	assert.Equal(t, 2*time.Second, DurationValue(cfg.Oracle.RateLimit))
	assert.Equal(t, DefaultRefineRateLimit, DurationValue(cfg.Oracle.RefineRateLimit))
	assert.Equal(t, 6, cfg.Oracle.Retry.MaxAttempts)
	assert.Equal(t, 8*time.Second, cfg.Oracle.Retry.MaxDelay)
	assert.Equal(t, []string{".py"}, cfg.Scan.Extensions)
	assert.Equal(t, 3, cfg.Scan.BatchSize)
	assert.Equal(t, "secret", cfg.Oracle.APIKey)
	assert.True(t, IsCacheEnabled(cfg))
	assert.False(t, IsSarifEnabled(cfg))
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})

	t.Run("default path falls back to defaults", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		defer func() { _ = os.Chdir(wd) }()

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		ApplyDefaults(cfg)
		assert.Equal(t, DefaultBatchSize, cfg.Scan.BatchSize)
		assert.Equal(t, DefaultExtensions, cfg.Scan.Extensions)
	})
}

func TestLoadConfigExplicitZeroPause(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
oracle:
  rate_limit: 0s
  refine_rate_limit: 0s
  quota_cooldown: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)

	require.NotNil(t, cfg.Oracle.RateLimit)
	assert.Zero(t, DurationValue(cfg.Oracle.RateLimit))
	assert.Zero(t, DurationValue(cfg.Oracle.RefineRateLimit))
	assert.Zero(t, DurationValue(cfg.Oracle.QuotaCooldown))
	assert.NoError(t, ValidateConfig(cfg))

	defaults := Default()
	assert.Equal(t, DefaultRateLimit, DurationValue(defaults.Oracle.RateLimit))
	assert.Equal(t, DefaultQuotaCooldown, DurationValue(defaults.Oracle.QuotaCooldown))
	require.NotNil(t, defaults.HTTPClient.TLSClientConfig.Verify)
	assert.True(t, *defaults.HTTPClient.TLSClientConfig.Verify)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "negative rate limit",
			mutate:  func(cfg *Config) { cfg.Oracle.RateLimit = DurationPtr(-time.Second) },
			wantErr: `YAML global config: oracle directive is invalid: invalid duration for "rate_limit": -1s cannot be negative`,
		},
		{
			name:    "too many attempts",
			mutate:  func(cfg *Config) { cfg.Oracle.Retry.MaxAttempts = 50 },
			wantErr: "YAML global config: oracle directive is invalid: retry.max_attempts must be between 0 and 20: 50",
		},
		{
			name: "max delay below base delay",
			mutate: func(cfg *Config) {
				cfg.Oracle.Retry.BaseDelay = 10 * time.Second
				cfg.Oracle.Retry.MaxDelay = time.Second
			},
			wantErr: "YAML global config: oracle directive is invalid: retry.max_delay 1s is lower than retry.base_delay 10s",
		},
		{
			name:    "extension without dot",
			mutate:  func(cfg *Config) { cfg.Scan.Extensions = []string{"py"} },
			wantErr: `YAML global config: scan directive is invalid: extension "py" must start with a dot`,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(cfg *Config) { cfg.Storage.Type = StorageS3 },
			wantErr: `YAML global config: storage directive is invalid: bucket must be set for the "s3" storage`,
		},
		{
			name:    "invalid proxy port",
			mutate:  func(cfg *Config) { cfg.HTTPClient.Proxy = Proxy{Host: "proxy.local", Port: 70000} },
			wantErr: "YAML global config: http_client directive is invalid: port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequireOracleCredentials(t *testing.T) {
	cfg := Default()
	err := RequireOracleCredentials(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	cfg.Oracle.APIKey = "key"
	assert.NoError(t, RequireOracleCredentials(cfg))
}

func TestGetBoolValue(t *testing.T) {
	cfg := Default()
	assert.True(t, GetBoolValue(cfg, "HTTPClient.TLSClientConfig.Verify", true))

	cfg.HTTPClient.TLSClientConfig.Verify = BoolPtr(false)
	assert.False(t, GetBoolValue(cfg, "HTTPClient.TLSClientConfig.Verify", true))
	assert.True(t, GetBoolValue(cfg, "HTTPClient.Missing", true))
	assert.False(t, GetBoolValue(nil, "Cache.Enabled", false))
}
