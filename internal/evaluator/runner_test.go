package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timvw/vibecheck/internal/model"
)

// fakeProvider fails the first `failures` attempts with `err`, then
// returns `result`. It records the time of every call.
type fakeProvider struct {
	name     string
	model    string
	failures int
	err      error
	result   *model.EvaluationResult

	calls     int
	callTimes []time.Time
	lastReq   model.EvaluationRequest
}

func (f *fakeProvider) Evaluate(_ context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	f.calls++
	f.callTimes = append(f.callTimes, time.Now())
	f.lastReq = req
	if f.calls <= f.failures {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

func (f *fakeProvider) Provider() string { return f.name }
func (f *fakeProvider) Model() string    { return f.model }

func yesResult(confidence float64) *model.EvaluationResult {
	return &model.EvaluationResult{
		Verdict:    model.VerdictYes,
		Confidence: confidence,
		Reasoning:  "looks right",
	}
}

// writeArtifact creates a tiny PNG-ish file and returns its path.
func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRunner(p Provider, defaults model.EvaluationOptions) *Runner {
	r := NewRunner(p, defaults)
	r.backoffBase = time.Millisecond
	return r
}

func TestRunnerSucceedsFirstAttempt(t *testing.T) {
	fake := &fakeProvider{name: "fake", model: "fake-1", result: yesResult(0.9)}
	r := testRunner(fake, model.EvaluationOptions{})

	result, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1", fake.calls)
	}
	if result.Verdict != model.VerdictYes {
		t.Errorf("Verdict: got %q, want yes", result.Verdict)
	}
	if result.EvaluatedAt.IsZero() {
		t.Error("EvaluatedAt not set")
	}
}

func TestRunnerRetriesTransportErrors(t *testing.T) {
	fake := &fakeProvider{
		name:     "fake",
		model:    "fake-1",
		failures: 2,
		err:      &model.TransportError{Provider: "fake", Status: 503, Err: fmt.Errorf("overloaded")},
		result:   yesResult(0.9),
	}
	r := testRunner(fake, model.EvaluationOptions{MaxRetries: 5})

	result, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fake.calls != 3 {
		t.Errorf("provider called %d times, want 3", fake.calls)
	}
	if result.Verdict != model.VerdictYes {
		t.Errorf("Verdict: got %q, want yes", result.Verdict)
	}
}

func TestRunnerBackoffDoubles(t *testing.T) {
	base := 20 * time.Millisecond
	fake := &fakeProvider{
		name:     "fake",
		model:    "fake-1",
		failures: 2,
		err:      &model.TransportError{Provider: "fake", Err: fmt.Errorf("connection reset")},
		result:   yesResult(0.9),
	}
	r := NewRunner(fake, model.EvaluationOptions{MaxRetries: 3})
	r.backoffBase = base

	if _, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(fake.callTimes) != 3 {
		t.Fatalf("provider called %d times, want 3", len(fake.callTimes))
	}

	// First wait is the base interval, second doubles it.
	gap1 := fake.callTimes[1].Sub(fake.callTimes[0])
	gap2 := fake.callTimes[2].Sub(fake.callTimes[1])
	if gap1 < base {
		t.Errorf("first backoff %v, want >= %v", gap1, base)
	}
	if gap2 < 2*base {
		t.Errorf("second backoff %v, want >= %v", gap2, 2*base)
	}
}

func TestRunnerExhaustsRetries(t *testing.T) {
	lastErr := &model.TransportError{Provider: "fake", Status: 500, Err: fmt.Errorf("boom")}
	fake := &fakeProvider{name: "fake", model: "fake-1", failures: 100, err: lastErr}
	r := testRunner(fake, model.EvaluationOptions{MaxRetries: 4})

	_, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if fake.calls != 4 {
		t.Errorf("provider called %d times, want 4", fake.calls)
	}
	var transportErr *model.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error %v is not a TransportError", err)
	}
	if transportErr.Status != 500 {
		t.Errorf("Status: got %d, want 500", transportErr.Status)
	}
}

func TestRunnerMaxRetriesOneMeansNoRetry(t *testing.T) {
	fake := &fakeProvider{
		name: "fake", model: "fake-1", failures: 100,
		err: &model.TransportError{Provider: "fake", Err: fmt.Errorf("down")},
	}
	r := testRunner(fake, model.EvaluationOptions{MaxRetries: 1})

	if _, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	}); err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1", fake.calls)
	}
}

func TestRunnerConfigErrorsNotRetried(t *testing.T) {
	fake := &fakeProvider{
		name: "fake", model: "fake-1", failures: 100,
		err: &model.ConfigError{Msg: "no API key"},
	}
	r := testRunner(fake, model.EvaluationOptions{MaxRetries: 5})

	_, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	})
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a ConfigError", err)
	}
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1", fake.calls)
	}
}

func TestRunnerMissingArtifactFailsBeforeProvider(t *testing.T) {
	fake := &fakeProvider{name: "fake", model: "fake-1", result: yesResult(0.9)}
	r := testRunner(fake, model.EvaluationOptions{})

	_, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     filepath.Join(t.TempDir(), "does-not-exist.png"),
		Specification: "a blue button",
	})
	var artErr *model.ArtifactError
	if !errors.As(err, &artErr) {
		t.Fatalf("error %v is not an ArtifactError", err)
	}
	if fake.calls != 0 {
		t.Errorf("provider called %d times, want 0", fake.calls)
	}
}

func TestRunnerInlineDataSkipsPreflight(t *testing.T) {
	fake := &fakeProvider{name: "fake", model: "fake-1", result: yesResult(0.9)}
	r := testRunner(fake, model.EvaluationOptions{})

	if _, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImageData:     []byte("\x89PNG\r\n\x1a\nfake"),
		Specification: "a blue button",
	}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1", fake.calls)
	}
}

func TestRunnerEmptySpecificationRejected(t *testing.T) {
	fake := &fakeProvider{name: "fake", model: "fake-1", result: yesResult(0.9)}
	r := testRunner(fake, model.EvaluationOptions{})

	_, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "   ",
	})
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a ConfigError", err)
	}
	if fake.calls != 0 {
		t.Errorf("provider called %d times, want 0", fake.calls)
	}
}

func TestRunnerNegativeVerdictNotRetried(t *testing.T) {
	fake := &fakeProvider{
		name: "fake", model: "fake-1",
		result: &model.EvaluationResult{Verdict: model.VerdictNo, Confidence: 0, Reasoning: "invalid response format"},
	}
	r := testRunner(fake, model.EvaluationOptions{MaxRetries: 5})

	result, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Downgraded results are results, not failures.
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1", fake.calls)
	}
	if result.Verdict != model.VerdictNo {
		t.Errorf("Verdict: got %q, want no", result.Verdict)
	}
}

func TestRunnerOptionLayering(t *testing.T) {
	fake := &fakeProvider{name: "fake", model: "fake-1", result: yesResult(0.9)}
	r := testRunner(fake, model.EvaluationOptions{
		ConfidenceThreshold: 0.6,
		MaxRetries:          2,
		ModelParameters:     map[string]any{"temperature": 0.5},
	})

	_, err := r.Evaluate(context.Background(), model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
		Options: model.EvaluationOptions{
			ConfidenceThreshold: 0.95,
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	opts := fake.lastReq.Options
	if opts.ConfidenceThreshold != 0.95 {
		t.Errorf("ConfidenceThreshold: got %v, want call-site 0.95", opts.ConfidenceThreshold)
	}
	if opts.MaxRetries != 2 {
		t.Errorf("MaxRetries: got %d, want runner default 2", opts.MaxRetries)
	}
	if opts.Temperature() != 0.5 {
		t.Errorf("Temperature: got %v, want runner default 0.5", opts.Temperature())
	}
}
