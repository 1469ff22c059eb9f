package model

import (
	"time"
)

// Verdict is the binary judgment a model gives about whether a rendered
// element matches its specification.
type Verdict string

const (
	VerdictYes Verdict = "yes"
	VerdictNo  Verdict = "no"
)

// Hard-coded fallbacks applied when neither the call site, the run config,
// nor the provider supplies a value.
const (
	DefaultConfidenceThreshold = 0.8
	DefaultMaxRetries          = 3
	DefaultTemperature         = 0.2
	DefaultMaxTokens           = 1500
)

// EvaluationRequest describes one visual assertion: an image artifact plus
// the natural-language specification it should satisfy.
//
// Either ImagePath or ImageData must be set. When both are set, ImageData
// wins and ImagePath is kept for diagnostics only. A request is never
// mutated once handed to a provider.
type EvaluationRequest struct {
	// ImagePath is the filesystem location of the capture artifact.
	ImagePath string `json:"image_path,omitempty"`
	// ImageData is the raw image bytes, for callers that hold the capture
	// in memory instead of on disk.
	ImageData []byte `json:"-"`
	// Specification is the natural-language description to check against.
	Specification string `json:"specification"`
	// Options are the call-site evaluation options. Zero values mean
	// "unset" and fall through to run config and provider defaults.
	Options EvaluationOptions `json:"options"`
}

// EvaluationOptions tune a single evaluation. All fields are optional at
// the call site; unset fields are filled by MergedWith.
type EvaluationOptions struct {
	// ConfidenceThreshold is the minimum confidence for a passing verdict.
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold"`
	// IncludeRawResponse attaches the raw model reply to the result.
	IncludeRawResponse bool `json:"include_raw_response,omitempty" yaml:"include_raw_response"`
	// MaxRetries is the total number of attempts; 1 means no retry.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries"`
	// ModelParameters are passed through to the backend verbatim.
	// Recognized keys: "temperature" (float), "max_tokens" (int).
	ModelParameters map[string]any `json:"model_parameters,omitempty" yaml:"model_parameters"`
}

// MergedWith returns a copy of o with unset fields filled from defaults.
// Precedence is o over defaults; chain calls to layer call-site options
// over run config over provider defaults. ModelParameters merge per key.
func (o EvaluationOptions) MergedWith(defaults EvaluationOptions) EvaluationOptions {
	merged := o
	if merged.ConfidenceThreshold == 0 {
		merged.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if !merged.IncludeRawResponse {
		merged.IncludeRawResponse = defaults.IncludeRawResponse
	}
	if merged.MaxRetries <= 0 {
		merged.MaxRetries = defaults.MaxRetries
	}
	if len(defaults.ModelParameters) > 0 {
		params := make(map[string]any, len(defaults.ModelParameters)+len(o.ModelParameters))
		for k, v := range defaults.ModelParameters {
			params[k] = v
		}
		for k, v := range o.ModelParameters {
			params[k] = v
		}
		merged.ModelParameters = params
	}
	return merged
}

// Resolved returns the options with hard-coded fallbacks applied. The
// returned options always carry a usable threshold and retry count.
func (o EvaluationOptions) Resolved() EvaluationOptions {
	return o.MergedWith(EvaluationOptions{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxRetries:          DefaultMaxRetries,
	})
}

// Temperature returns the model temperature from ModelParameters, or the
// hard-coded default when absent.
func (o EvaluationOptions) Temperature() float64 {
	if v, ok := paramFloat(o.ModelParameters, "temperature"); ok {
		return v
	}
	return DefaultTemperature
}

// MaxTokens returns the output token ceiling from ModelParameters, or the
// hard-coded default when absent.
func (o EvaluationOptions) MaxTokens() int64 {
	if v, ok := paramFloat(o.ModelParameters, "max_tokens"); ok && v > 0 {
		return int64(v)
	}
	return DefaultMaxTokens
}

// paramFloat reads a numeric parameter regardless of how it was decoded
// (JSON gives float64, YAML may give int).
func paramFloat(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// EvaluationResult is the normalized verdict produced by one evaluation.
// Immutable once returned.
type EvaluationResult struct {
	// Verdict is the model's yes/no judgment.
	Verdict Verdict `json:"verdict"`
	// Confidence is the model-reported certainty, nominally in [0,1].
	// Out-of-range values are kept as-is; the decision gate compares the
	// raw value against the threshold.
	Confidence float64 `json:"confidence"`
	// Reasoning is the model's explanation of the verdict.
	Reasoning string `json:"reasoning"`
	// FailReason is a short statement of what did not match, when the
	// model provides one.
	FailReason string `json:"fail_reason,omitempty"`
	// Suggestions are model-proposed fixes, in the order returned.
	Suggestions []string `json:"suggestions,omitempty"`
	// RawResponse is the verbatim model reply. Only populated when
	// IncludeRawResponse was set for the call.
	RawResponse string `json:"raw_response,omitempty"`

	// Usage tracks token consumption for this evaluation.
	Usage TokenUsage `json:"usage,omitempty"`

	// Model is the LLM model that produced this result.
	Model string `json:"model,omitempty"`
	// Provider is the backend used (e.g. "anthropic", "openai", "gemini").
	Provider string `json:"provider,omitempty"`
	// EvaluatedAt is when the evaluation completed.
	EvaluatedAt time.Time `json:"evaluated_at,omitempty"`
	// DurationMs is the wall-clock time in milliseconds, retries included.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// LLMReply is the JSON structure the model is instructed to return.
// Parsed from the reply text, possibly after fence stripping and
// extraction from surrounding prose.
type LLMReply struct {
	Verdict     string   `json:"verdict"`
	Confidence  *float64 `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	FailReason  string   `json:"fail_reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TokenUsage tracks LLM token consumption for a single evaluation.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
