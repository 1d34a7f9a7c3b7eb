package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolforge/toolforge-go/db"
	"github.com/toolforge/toolforge-go/sitematrix"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRateLimitRPS   = 1.0
	defaultRateLimitBurst = 2
	defaultLogLevel       = "warn"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	MetadataURL    string
	HTTPTimeout    time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Tool           string
	ToolURL        string
	ToolEmail      string
	DefaultsFile   string
	LogLevel       string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	MetadataURL  string        `yaml:"metadata_url"`
	HTTPTimeout  string        `yaml:"http_timeout"`
	Tool         yamlTool      `yaml:"tool"`
	DefaultsFile string        `yaml:"defaults_file"`
	LogLevel     string        `yaml:"log_level"`
	RateLimit    yamlRateLimit `yaml:"rate_limit"`
}

type yamlTool struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Email string `yaml:"email"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile  string
	MetadataURL *string
	Tool        *string
	ToolURL     *string
	ToolEmail   *string
	LogLevel    *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment first so the YAML file can override it.
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		MetadataURL:    sitematrix.DefaultEndpoint,
		HTTPTimeout:    defaultHTTPTimeout,
		RateLimitRPS:   defaultRateLimitRPS,
		RateLimitBurst: defaultRateLimitBurst,
		DefaultsFile:   db.DefaultsFile,
		LogLevel:       defaultLogLevel,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.MetadataURL != "" {
		cfg.MetadataURL = yamlCfg.MetadataURL
	}

	if yamlCfg.HTTPTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	if yamlCfg.Tool.Name != "" {
		cfg.Tool = yamlCfg.Tool.Name
	}
	if yamlCfg.Tool.URL != "" {
		cfg.ToolURL = yamlCfg.Tool.URL
	}
	if yamlCfg.Tool.Email != "" {
		cfg.ToolEmail = yamlCfg.Tool.Email
	}

	if yamlCfg.DefaultsFile != "" {
		cfg.DefaultsFile = yamlCfg.DefaultsFile
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_METADATA_URL")); v != "" {
		cfg.MetadataURL = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_HTTP_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPTimeout = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_TOOL")); v != "" {
		cfg.Tool = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_TOOL_URL")); v != "" {
		cfg.ToolURL = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_TOOL_EMAIL")); v != "" {
		cfg.ToolEmail = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_DEFAULTS_FILE")); v != "" {
		cfg.DefaultsFile = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOLFORGE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	if rps := strings.TrimSpace(os.Getenv("TOOLFORGE_RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("TOOLFORGE_RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.MetadataURL != nil && *overrides.MetadataURL != "" {
		cfg.MetadataURL = *overrides.MetadataURL
	}

	if overrides.Tool != nil && *overrides.Tool != "" {
		cfg.Tool = *overrides.Tool
	}

	if overrides.ToolURL != nil && *overrides.ToolURL != "" {
		cfg.ToolURL = *overrides.ToolURL
	}

	if overrides.ToolEmail != nil && *overrides.ToolEmail != "" {
		cfg.ToolEmail = *overrides.ToolEmail
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.MetadataURL == "" {
		return fmt.Errorf("metadata URL cannot be empty")
	}
	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", cfg.HTTPTimeout)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("TOOLFORGE_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("TOOLFORGE_RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}
