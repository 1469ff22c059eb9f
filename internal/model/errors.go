package model

import (
	"fmt"
	"strings"
)

// ConfigError reports a setup problem: an unregistered provider name, a
// missing default provider, or a missing API key at call time. Never
// retried.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a network failure or a non-2xx response from the
// backend. Retried up to MaxRetries, then surfaced unchanged.
type TransportError struct {
	// Provider is the backend that failed.
	Provider string
	// Status is the HTTP status code, or 0 for pure network failures.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s API call failed (HTTP %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s API call failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ArtifactError reports a missing or unreadable image artifact. Fails
// immediately: the artifact will not appear on retry.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("image artifact %q unavailable: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// AssertionError is the decision gate's failure: the evaluation completed
// but the verdict did not clear the threshold. It carries enough context
// to diagnose without re-running the check.
type AssertionError struct {
	Specification string
	Result        *EvaluationResult
	Threshold     float64
	ArtifactPath  string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vibe check failed: %s\n", e.Specification)
	fmt.Fprintf(&b, "  verdict:    %s\n", e.Result.Verdict)
	fmt.Fprintf(&b, "  confidence: %.2f (threshold %.2f)\n", e.Result.Confidence, e.Threshold)
	if e.Result.Reasoning != "" {
		fmt.Fprintf(&b, "  reasoning:  %s\n", e.Result.Reasoning)
	}
	if e.Result.FailReason != "" {
		fmt.Fprintf(&b, "  reason:     %s\n", e.Result.FailReason)
	}
	if len(e.Result.Suggestions) > 0 {
		fmt.Fprintf(&b, "  suggestions: %s\n", strings.Join(e.Result.Suggestions, "; "))
	}
	if e.ArtifactPath != "" {
		fmt.Fprintf(&b, "  artifact:   %s", e.ArtifactPath)
	}
	return strings.TrimRight(b.String(), "\n")
}
