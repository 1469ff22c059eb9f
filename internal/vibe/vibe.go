// Package vibe is the orchestration entry point for visual assertions:
// it dispatches an evaluation through the provider registry and renders
// the result into a pass/fail decision.
package vibe

import (
	"context"

	"github.com/timvw/vibecheck/internal/evaluator"
	"github.com/timvw/vibecheck/internal/model"
)

// Check evaluates the capture artifact against the specification using
// the named provider (registry default when empty) and applies the
// decision gate. On pass it returns the result for chaining; on fail it
// returns the result together with an assertion error describing exactly
// what did not match.
func Check(ctx context.Context, reg *evaluator.Registry, req model.EvaluationRequest, providerName string) (*model.EvaluationResult, error) {
	r, err := reg.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	result, err := reg.Evaluate(ctx, req, providerName)
	if err != nil {
		return nil, err
	}

	threshold := effectiveThreshold(req.Options, r)
	if err := Decide(result, threshold, req.Specification, req.ImagePath); err != nil {
		return result, err
	}
	return result, nil
}

// Decide applies the pass/fail gate: PASS iff the verdict is "yes" and
// the confidence clears the threshold. Confidence is compared as
// reported, without clamping to [0,1]. On fail it returns an
// AssertionError carrying the full diagnostic context.
func Decide(result *model.EvaluationResult, threshold float64, specification, artifactPath string) error {
	if result.Verdict == model.VerdictYes && result.Confidence >= threshold {
		return nil
	}
	return &model.AssertionError{
		Specification: specification,
		Result:        result,
		Threshold:     threshold,
		ArtifactPath:  artifactPath,
	}
}

// effectiveThreshold mirrors the runner's option layering so the gate
// compares against the same threshold the evaluation ran with.
func effectiveThreshold(opts model.EvaluationOptions, r *evaluator.Runner) float64 {
	return opts.MergedWith(r.Defaults()).Resolved().ConfidenceThreshold
}
