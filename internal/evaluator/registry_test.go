package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timvw/vibecheck/internal/model"
)

func TestRegistryFirstRegistrationIsDefault(t *testing.T) {
	reg := NewRegistry()
	a := &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}
	b := &fakeProvider{name: "b", model: "b-1", result: yesResult(0.8)}
	reg.Register("a", a, model.EvaluationOptions{}, false)
	reg.Register("b", b, model.EvaluationOptions{}, false)

	r, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Provider() != "a" {
		t.Errorf("default provider: got %q, want %q", r.Provider(), "a")
	}
}

func TestRegistryMakeDefaultOverrides(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}, model.EvaluationOptions{}, false)
	reg.Register("b", &fakeProvider{name: "b", model: "b-1", result: yesResult(0.8)}, model.EvaluationOptions{}, true)

	r, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Provider() != "b" {
		t.Errorf("default provider: got %q, want %q", r.Provider(), "b")
	}
}

func TestRegistrySetDefault(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}, model.EvaluationOptions{}, false)
	reg.Register("b", &fakeProvider{name: "b", model: "b-1", result: yesResult(0.8)}, model.EvaluationOptions{}, false)

	if err := reg.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	r, _ := reg.Resolve("")
	if r.Provider() != "b" {
		t.Errorf("default provider: got %q, want %q", r.Provider(), "b")
	}

	err := reg.SetDefault("nope")
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("SetDefault(nope): got %v, want ConfigError", err)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}, model.EvaluationOptions{}, false)

	_, err := reg.Resolve("nope")
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Resolve(nope): got %v, want ConfigError", err)
	}
}

func TestRegistryResolveNoDefault(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("")
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Resolve on empty registry: got %v, want ConfigError", err)
	}
}

func TestRegistryEvaluateDispatchesByName(t *testing.T) {
	reg := NewRegistry()
	a := &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}
	b := &fakeProvider{name: "b", model: "b-1", result: yesResult(0.8)}
	reg.Register("a", a, model.EvaluationOptions{}, false)
	reg.Register("b", b, model.EvaluationOptions{}, false)

	req := model.EvaluationRequest{
		ImagePath:     writeArtifact(t),
		Specification: "a blue button",
	}

	result, err := reg.Evaluate(context.Background(), req, "b")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if b.calls != 1 || a.calls != 0 {
		t.Errorf("calls: a=%d b=%d, want a=0 b=1", a.calls, b.calls)
	}
	if result.Confidence != 0.8 {
		t.Errorf("Confidence: got %v, want 0.8", result.Confidence)
	}
}

func TestRegistryRegisterSpecUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RegisterSpec("x", "grok", ProviderConfig{}, false)
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("RegisterSpec with unknown type: got %v, want ConfigError", err)
	}
}

func TestRegistryRegisterSpecKnownTypes(t *testing.T) {
	for _, providerType := range []string{"anthropic", "openai", "gemini"} {
		t.Run(providerType, func(t *testing.T) {
			reg := NewRegistry()
			p, err := reg.RegisterSpec(providerType, providerType, ProviderConfig{APIKey: "test-key"}, false)
			if err != nil {
				t.Fatalf("RegisterSpec: %v", err)
			}
			if p.Provider() != providerType {
				t.Errorf("Provider: got %q, want %q", p.Provider(), providerType)
			}
			if _, err := reg.Resolve(providerType); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		})
	}
}

func TestRegistryCacheReusesVerdict(t *testing.T) {
	reg := NewRegistry()
	fake := &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}
	reg.Register("a", fake, model.EvaluationOptions{}, false)
	reg.SetCache(NewVerdictCache(time.Minute))

	req := model.EvaluationRequest{
		ImageData:     []byte("\x89PNG\r\n\x1a\nfake"),
		Specification: "a blue button",
	}

	if _, err := reg.Evaluate(context.Background(), req, ""); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if _, err := reg.Evaluate(context.Background(), req, ""); err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("provider called %d times, want 1 (second call cached)", fake.calls)
	}

	// A different specification is a different key.
	req.Specification = "a red button"
	if _, err := reg.Evaluate(context.Background(), req, ""); err != nil {
		t.Fatalf("third Evaluate: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("provider called %d times, want 2", fake.calls)
	}
}

func TestRegistryCacheBypassedForRawResponses(t *testing.T) {
	reg := NewRegistry()
	fake := &fakeProvider{name: "a", model: "a-1", result: yesResult(0.9)}
	reg.Register("a", fake, model.EvaluationOptions{}, false)
	reg.SetCache(NewVerdictCache(time.Minute))

	req := model.EvaluationRequest{
		ImageData:     []byte("\x89PNG\r\n\x1a\nfake"),
		Specification: "a blue button",
		Options:       model.EvaluationOptions{IncludeRawResponse: true},
	}

	for i := 0; i < 2; i++ {
		if _, err := reg.Evaluate(context.Background(), req, ""); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
	}
	if fake.calls != 2 {
		t.Errorf("provider called %d times, want 2 (raw responses bypass cache)", fake.calls)
	}
}
