package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DefaultConfigPath is used when no --config flag is provided.
const DefaultConfigPath = "config.yml"

// Config is the global llmscan configuration loaded from YAML.
type Config struct {
	Logger     Logger     `yaml:"logger"`
	HTTPClient HTTPClient `yaml:"http_client"`
	Oracle     Oracle     `yaml:"oracle"`
	Scan       Scan       `yaml:"scan"`
	GitClient  GitClient  `yaml:"git_client"`
	Cache      Cache      `yaml:"cache"`
	Storage    Storage    `yaml:"storage"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type HTTPClient struct {
	Debug           *bool           `yaml:"debug"`
	Timeout         time.Duration   `yaml:"timeout"`
	TLSClientConfig TLSClientConfig `yaml:"tls_client_config"`
	Proxy           Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Oracle describes the external analysis service and the protocol limits around it.
// The pauses are pointers so an explicit 0s disables them instead of taking the default.
type Oracle struct {
	BaseURL         string         `yaml:"base_url"`
	APIKey          string         `yaml:"api_key"`
	Model           string         `yaml:"model"`
	RefineModel     string         `yaml:"refine_model"`
	RateLimit       *time.Duration `yaml:"rate_limit"`
	RefineRateLimit *time.Duration `yaml:"refine_rate_limit"`
	QuotaCooldown   *time.Duration `yaml:"quota_cooldown"`
	Retry           Retry          `yaml:"retry"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      *bool         `yaml:"jitter"`
}

type Scan struct {
	Extensions      []string `yaml:"extensions"`
	Exclude         []string `yaml:"exclude"`
	BatchSize       int      `yaml:"batch_size"`
	OutputFolder    string   `yaml:"output_folder"`
	MaxContextBytes int      `yaml:"max_context_bytes"`
	Sarif           *bool    `yaml:"sarif"`
}

type GitClient struct {
	Depth           int           `yaml:"depth"`
	Timeout         time.Duration `yaml:"timeout"`
	Username        string        `yaml:"username"`
	Token           string        `yaml:"token"`
	SSHKey          string        `yaml:"ssh_key"`
	SSHKeyPassword  string        `yaml:"ssh_key_password"`
	InsecureHostKey *bool         `yaml:"insecure_host_key"`
}

type Cache struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Storage struct {
	Type     string `yaml:"type"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// ValidateConfigPath checks that the path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file and applies environment overrides.
// A missing file is only tolerated for the default path, in which case the
// built-in defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath
	}

	if err := LoadYAML(configPath, cfg); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets secrets and the output folder come from the environment.
func applyEnv(cfg *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if key := os.Getenv("LLMSCAN_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if token := os.Getenv("LLMSCAN_GIT_TOKEN"); token != "" {
		cfg.GitClient.Token = token
	}
	if folder := os.Getenv("LLMSCAN_OUTPUT_FOLDER"); folder != "" {
		cfg.Scan.OutputFolder = folder
	}
}
