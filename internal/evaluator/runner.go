package evaluator

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/timvw/vibecheck/internal/model"
)

// Runner wraps a Provider's single-attempt evaluation with option
// defaulting, an artifact preflight check, and retry with exponential
// backoff. Every registered provider is dispatched through a Runner.
//
// Retry policy: attempts 1..MaxRetries; attempt n waits
// base * 2^(n-1) before attempt n+1 (1s, 2s, 4s, ... with the default
// base). Config and artifact errors are permanent and never retried.
// A returned result never triggers a retry, including the downgraded
// zero-confidence results produced from malformed replies.
type Runner struct {
	provider Provider
	// defaults are the provider-level defaults, already merged with run
	// config by whoever built the Runner. Call-site options win over them.
	defaults model.EvaluationOptions
	// backoffBase is the first retry delay. Tests shrink it.
	backoffBase time.Duration
}

// NewRunner wraps a provider with the given evaluation defaults.
func NewRunner(p Provider, defaults model.EvaluationOptions) *Runner {
	return &Runner{
		provider:    p,
		defaults:    defaults,
		backoffBase: time.Second,
	}
}

// Provider returns the wrapped provider's backend name.
func (r *Runner) Provider() string { return r.provider.Provider() }

// Defaults returns the evaluation defaults call-site options merge over.
func (r *Runner) Defaults() model.EvaluationOptions { return r.defaults }

// Model returns the wrapped provider's model name.
func (r *Runner) Model() string { return r.provider.Model() }

// Evaluate merges options, verifies the artifact exists, then runs the
// provider under the retry loop. The final attempt's error propagates
// unchanged if all attempts fail.
func (r *Runner) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	req.Options = req.Options.MergedWith(r.defaults).Resolved()

	if strings.TrimSpace(req.Specification) == "" {
		return nil, &model.ConfigError{Msg: "specification must not be empty"}
	}

	// Preflight: a missing artifact will not appear on retry, so fail
	// before any network traffic.
	if len(req.ImageData) == 0 {
		if req.ImagePath == "" {
			return nil, &model.ConfigError{Msg: "evaluation request has neither image path nor image data"}
		}
		if _, err := os.Stat(req.ImagePath); err != nil {
			return nil, &model.ArtifactError{Path: req.ImagePath, Err: err}
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoffBase
	b.RandomizationFactor = 0
	b.Multiplier = 2

	start := time.Now()
	result, err := backoff.Retry(ctx, func() (*model.EvaluationResult, error) {
		res, err := r.provider.Evaluate(ctx, req)
		if err != nil {
			if isPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return res, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(req.Options.MaxRetries)))
	if err != nil {
		return nil, err
	}

	result.EvaluatedAt = time.Now().UTC()
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// isPermanent reports whether an error should bypass the retry loop.
// Transport errors are transient; config and artifact errors are not.
func isPermanent(err error) bool {
	var cfgErr *model.ConfigError
	var artErr *model.ArtifactError
	return errors.As(err, &cfgErr) || errors.As(err, &artErr)
}
