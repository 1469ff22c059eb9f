// Package config loads vibecheck configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (VIBECHECK_*)
//  2. Config file
//  3. Built-in defaults
//
// Call-site evaluation options layer on top of all of these; see the
// option merging in internal/model.
//
// Config file search order:
//  1. .vibecheck.yaml in current directory
//  2. ~/.config/vibecheck/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/timvw/vibecheck/internal/model"
	"gopkg.in/yaml.v3"
)

// Config holds all vibecheck configuration.
type Config struct {
	// Default provider and its connection settings.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`

	// Global evaluation defaults, overridden per call.
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
	MaxRetries          int            `yaml:"max_retries"`
	IncludeRawResponse  bool           `yaml:"include_raw_response"`
	ModelParameters     map[string]any `yaml:"model_parameters"`

	// Providers holds per-provider overrides, keyed by provider type
	// (anthropic, openai, gemini). Top-level settings apply to the
	// default provider; entries here win for their provider.
	Providers map[string]ProviderSettings `yaml:"providers"`

	// Verdict cache
	CacheTTL string `yaml:"cache_ttl"` // Go duration string, e.g. "5m"; "0" disables

	// History log path. Empty uses the default state-dir location;
	// "off" disables the log.
	HistoryFile string `yaml:"history_file"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed duration (not from YAML, set after loading)
	CacheTTLDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// ProviderSettings are per-provider overrides from the config file.
type ProviderSettings struct {
	Model               string  `yaml:"model"`
	BaseURL             string  `yaml:"base_url"`
	APIKey              string  `yaml:"api_key"`
	APIKeyEnvVar        string  `yaml:"api_key_env_var"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxRetries          int     `yaml:"max_retries"`
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:            "anthropic",
		ConfidenceThreshold: model.DefaultConfidenceThreshold,
		MaxRetries:          model.DefaultMaxRetries,
		CacheTTL:            "0",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	var err error
	cfg.CacheTTLDuration, err = parseDurationOrDisable(cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL %q: %w", cfg.CacheTTL, err)
	}

	return cfg, nil
}

// Options returns the global evaluation defaults as merge-ready options.
func (c *Config) Options() model.EvaluationOptions {
	return model.EvaluationOptions{
		ConfidenceThreshold: c.ConfidenceThreshold,
		IncludeRawResponse:  c.IncludeRawResponse,
		MaxRetries:          c.MaxRetries,
		ModelParameters:     c.ModelParameters,
	}
}

// ProviderOptions returns the evaluation defaults for one provider:
// per-provider overrides layered over the global defaults.
func (c *Config) ProviderOptions(provider string) model.EvaluationOptions {
	opts := c.Options()
	ps, ok := c.Providers[provider]
	if !ok {
		return opts
	}
	override := model.EvaluationOptions{
		ConfidenceThreshold: ps.ConfidenceThreshold,
		MaxRetries:          ps.MaxRetries,
	}
	if ps.Temperature != 0 || ps.MaxTokens != 0 {
		override.ModelParameters = map[string]any{}
		if ps.Temperature != 0 {
			override.ModelParameters["temperature"] = ps.Temperature
		}
		if ps.MaxTokens != 0 {
			override.ModelParameters["max_tokens"] = ps.MaxTokens
		}
	}
	return override.MergedWith(opts)
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".vibecheck.yaml"); err == nil {
		return ".vibecheck.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "vibecheck", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Provider != "" {
		cfg.Provider = file.Provider
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if file.APIKey != "" {
		cfg.APIKey = file.APIKey
	}
	if file.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = file.ConfidenceThreshold
	}
	if file.MaxRetries > 0 {
		cfg.MaxRetries = file.MaxRetries
	}
	if file.IncludeRawResponse {
		cfg.IncludeRawResponse = file.IncludeRawResponse
	}
	if len(file.ModelParameters) > 0 {
		cfg.ModelParameters = file.ModelParameters
	}
	if len(file.Providers) > 0 {
		cfg.Providers = file.Providers
	}
	if file.CacheTTL != "" {
		cfg.CacheTTL = file.CacheTTL
	}
	if file.HistoryFile != "" {
		cfg.HistoryFile = file.HistoryFile
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("VIBECHECK_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("VIBECHECK_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("VIBECHECK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VIBECHECK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("VIBECHECK_CONFIDENCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid VIBECHECK_CONFIDENCE_THRESHOLD %q: %w", v, err)
		}
		cfg.ConfidenceThreshold = f
	}
	if v := os.Getenv("VIBECHECK_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VIBECHECK_MAX_RETRIES %q: %w", v, err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("VIBECHECK_CACHE_TTL"); v != "" {
		cfg.CacheTTL = v
	}
	if v := os.Getenv("VIBECHECK_HISTORY_FILE"); v != "" {
		cfg.HistoryFile = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "", "0", "off" and
// "disable" return 0 (caching disabled).
func parseDurationOrDisable(s string) (time.Duration, error) {
	if s == "" || s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
