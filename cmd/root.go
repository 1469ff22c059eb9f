package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/vibecheck/internal/config"
	"github.com/timvw/vibecheck/internal/evaluator"
	"github.com/timvw/vibecheck/internal/history"
	"github.com/timvw/vibecheck/internal/model"
	"github.com/timvw/vibecheck/internal/otel"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagProvider   string
	flagModel      string
	flagBaseURL    string
	flagAPIKey     string
	flagThreshold  float64
	flagMaxRetries int
	flagIncludeRaw bool
)

var rootCmd = &cobra.Command{
	Use:   "vibecheck",
	Short: "LLM-backed visual assertions for UI tests",
	Long: `vibecheck asserts that a rendered element matches a natural-language
specification by delegating the judgment to a vision-capable LLM.

The model receives the screenshot and the specification and returns a
yes/no verdict with a confidence score. A check passes when the verdict
is "yes" and the confidence clears the configured threshold.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "LLM provider: anthropic, openai, gemini (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "LLM model name (default per provider)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "override LLM API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "override LLM API key")
	rootCmd.PersistentFlags().Float64Var(&flagThreshold, "threshold", 0, "minimum confidence for a pass (default 0.8)")
	rootCmd.PersistentFlags().IntVar(&flagMaxRetries, "max-retries", 0, "total evaluation attempts (default 3)")
	rootCmd.PersistentFlags().BoolVar(&flagIncludeRaw, "include-raw", false, "include the raw model reply in the output")
}

// setup loads configuration, applies flag overrides, initializes
// telemetry and builds the provider registry.
func setup(ctx context.Context) (*config.Config, *evaluator.Registry, *otel.Telemetry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	applyFlags(cfg)

	otel.Version = Version
	tel, err := otel.Init(ctx, otel.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	reg, err := buildRegistry(cfg, tel)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, nil, nil, err
	}
	return cfg, reg, tel, nil
}

// applyFlags overlays command-line flags onto the loaded config.
// Flags win over environment and file values.
func applyFlags(cfg *config.Config) {
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagThreshold > 0 {
		cfg.ConfidenceThreshold = flagThreshold
	}
	if flagMaxRetries > 0 {
		cfg.MaxRetries = flagMaxRetries
	}
	if flagIncludeRaw {
		cfg.IncludeRawResponse = true
	}
}

// buildRegistry registers the default provider plus every provider with
// an explicit config section, so scan manifests can dispatch by name.
func buildRegistry(cfg *config.Config, tel *otel.Telemetry) (*evaluator.Registry, error) {
	reg := evaluator.NewRegistry()
	reg.SetMetrics(tel.Metrics)
	if cfg.CacheTTLDuration > 0 {
		reg.SetCache(evaluator.NewVerdictCache(cfg.CacheTTLDuration))
	}

	if _, err := reg.RegisterSpec(cfg.Provider, cfg.Provider, providerConfig(cfg, cfg.Provider), true); err != nil {
		return nil, err
	}
	for name := range cfg.Providers {
		if name == cfg.Provider {
			continue
		}
		if _, err := reg.RegisterSpec(name, name, providerConfig(cfg, name), false); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// providerConfig assembles one provider's config from the global and
// per-provider sections. The top-level model/base-url/api-key apply only
// to the default provider.
func providerConfig(cfg *config.Config, name string) evaluator.ProviderConfig {
	pc := evaluator.ProviderConfig{
		Defaults: cfg.ProviderOptions(name),
	}
	if ps, ok := cfg.Providers[name]; ok {
		pc.Model = ps.Model
		pc.BaseURL = ps.BaseURL
		pc.APIKey = ps.APIKey
		pc.APIKeyEnvVar = ps.APIKeyEnvVar
	}
	if name == cfg.Provider {
		if cfg.Model != "" {
			pc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			pc.BaseURL = cfg.BaseURL
		}
		if cfg.APIKey != "" {
			pc.APIKey = cfg.APIKey
		}
	}
	return pc
}

// historyLog resolves the history log from config, or nil when disabled.
func historyLog(cfg *config.Config) *history.Log {
	switch cfg.HistoryFile {
	case "off", "disable":
		return nil
	case "":
		return history.Open(history.DefaultPath())
	default:
		return history.Open(cfg.HistoryFile)
	}
}

// recordHistory appends one finished evaluation to the log, best effort.
func recordHistory(hist *history.Log, req model.EvaluationRequest, result *model.EvaluationResult, passed bool) {
	if hist == nil || result == nil {
		return
	}
	if err := hist.Append(history.RecordOf(req, result, passed)); err != nil {
		log.Printf("history: %v", err)
	}
}

// callOptions builds the call-site options from flags. Zero values fall
// through to config and provider defaults.
func callOptions() model.EvaluationOptions {
	return model.EvaluationOptions{
		ConfidenceThreshold: flagThreshold,
		MaxRetries:          flagMaxRetries,
		IncludeRawResponse:  flagIncludeRaw,
	}
}
