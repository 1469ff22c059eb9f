// Package evaluator implements the LLM evaluation pipeline for visual
// assertions: one Provider per vision backend, a Runner that adds option
// defaulting and retry/backoff on top of any Provider, and a Registry
// that dispatches evaluation requests to named providers.
//
// Go code constructs the prompt and parses the response, but the
// match/no-match judgment is made entirely by the LLM. No pixel
// comparison happens here.
package evaluator

import (
	"context"
	"log"
	"os"

	"github.com/timvw/vibecheck/internal/model"
)

// Provider sends an image and a specification to one vision backend and
// returns a normalized verdict. A Provider performs exactly one API call
// per Evaluate invocation; retries live in the Runner.
type Provider interface {
	// Evaluate runs a single evaluation attempt. The request is never
	// mutated. Options are assumed to be fully merged by the caller.
	Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error)

	// Provider returns the backend name (e.g. "anthropic", "openai").
	Provider() string

	// Model returns the model name used for evaluation.
	Model() string
}

// ProviderConfig holds per-provider settings, resolved once at
// construction and not re-validated per call.
type ProviderConfig struct {
	// APIKey is the explicit API key. When empty, APIKeyEnvVar is read.
	APIKey string `yaml:"api_key"`
	// APIKeyEnvVar names the environment variable holding the key.
	// Each backend constructor supplies its conventional default.
	APIKeyEnvVar string `yaml:"api_key_env_var"`
	// BaseURL overrides the backend endpoint.
	BaseURL string `yaml:"base_url"`
	// Model is the model name; each backend has a default.
	Model string `yaml:"model"`
	// Defaults are the provider-level evaluation defaults, overridden by
	// run config and call-site options.
	Defaults model.EvaluationOptions `yaml:"defaults"`
	// ExtraHeaders are additional HTTP headers sent with every request.
	ExtraHeaders map[string]string `yaml:"extra_headers"`
}

// resolveAPIKey returns the configured key, falling back to the named
// environment variable. A missing key is not an error here: construction
// only warns, and the call fails with a config error at evaluation time.
func (c ProviderConfig) resolveAPIKey(backend, defaultEnvVar string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	envVar := c.APIKeyEnvVar
	if envVar == "" {
		envVar = defaultEnvVar
	}
	key := os.Getenv(envVar)
	if key == "" {
		log.Printf("warning: no API key for %s provider (set %s); evaluations will fail", backend, envVar)
	}
	return key
}

// New constructs a Provider for the given backend type tag. Unknown tags
// fail with a config error.
func New(providerType string, cfg ProviderConfig) (Provider, error) {
	switch providerType {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	default:
		return nil, &model.ConfigError{Msg: "unknown provider type \"" + providerType + "\" (supported: anthropic, openai, gemini)"}
	}
}
