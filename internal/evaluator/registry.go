package evaluator

import (
	"context"
	"errors"
	"sync"

	"github.com/timvw/vibecheck/internal/model"
	"github.com/timvw/vibecheck/internal/otel"
)

// Registry holds named providers, each wrapped in a Runner, and routes
// evaluation requests to the right one. The first registered provider
// becomes the default unless a later registration claims it explicitly.
//
// Build the registry once at startup and pass it by reference; there is
// no package-level instance. Registration happens before evaluation
// traffic begins, so the map is effectively read-only afterwards; the
// mutex exists for the setup phase.
type Registry struct {
	mu          sync.RWMutex
	runners     map[string]*Runner
	defaultName string

	cache   *VerdictCache
	metrics *otel.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]*Runner),
	}
}

// SetCache installs a verdict cache consulted before dispatching to a
// provider. A nil cache disables caching.
func (g *Registry) SetCache(c *VerdictCache) {
	g.cache = c
}

// SetMetrics installs the metric instruments recorded per evaluation.
func (g *Registry) SetMetrics(m *otel.Metrics) {
	g.metrics = m
}

// Register stores a ready provider under name with the given evaluation
// defaults. The first registration becomes the default; makeDefault
// overrides. Returns the wrapping Runner.
func (g *Registry) Register(name string, p Provider, defaults model.EvaluationOptions, makeDefault bool) *Runner {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := NewRunner(p, defaults)
	if len(g.runners) == 0 || makeDefault {
		g.defaultName = name
	}
	g.runners[name] = r
	return r
}

// RegisterSpec constructs a provider from a (type, config) pair and
// registers it. An unknown type tag fails with a config error.
func (g *Registry) RegisterSpec(name, providerType string, cfg ProviderConfig, makeDefault bool) (Provider, error) {
	p, err := New(providerType, cfg)
	if err != nil {
		return nil, err
	}
	g.Register(name, p, cfg.Defaults, makeDefault)
	return p, nil
}

// SetDefault marks an already-registered provider as the default.
func (g *Registry) SetDefault(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.runners[name]; !ok {
		return &model.ConfigError{Msg: "provider \"" + name + "\" is not registered"}
	}
	g.defaultName = name
	return nil
}

// Resolve returns the named runner, or the default when name is empty.
func (g *Registry) Resolve(name string) (*Runner, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if name == "" {
		name = g.defaultName
		if name == "" {
			return nil, &model.ConfigError{Msg: "no default provider is set"}
		}
	}
	r, ok := g.runners[name]
	if !ok {
		return nil, &model.ConfigError{Msg: "provider \"" + name + "\" is not registered"}
	}
	return r, nil
}

// Names returns the registered provider names and the current default.
func (g *Registry) Names() (names []string, defaultName string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name := range g.runners {
		names = append(names, name)
	}
	return names, g.defaultName
}

// Evaluate resolves a provider by name (default when empty) and runs the
// request through its Runner. This is the sole dispatch path external
// callers use.
func (g *Registry) Evaluate(ctx context.Context, req model.EvaluationRequest, providerName string) (*model.EvaluationResult, error) {
	r, err := g.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	// Raw responses are per-call artifacts, so those requests bypass the
	// cache entirely.
	merged := req.Options.MergedWith(r.defaults).Resolved()
	cacheable := g.cache != nil && !merged.IncludeRawResponse

	var key string
	if cacheable {
		if k, ok := g.cache.Key(req, r.Provider(), r.Model()); ok {
			key = k
			if cached, hit := g.cache.Lookup(key); hit {
				g.metrics.RecordCacheHit(ctx)
				g.metrics.RecordEvaluation(ctx, outcomeOf(cached))
				return cached, nil
			}
			g.metrics.RecordCacheMiss(ctx)
		}
	}

	result, err := r.Evaluate(ctx, req)
	if err != nil {
		g.metrics.RecordEvaluation(ctx, "error")
		return nil, err
	}

	g.metrics.RecordEvaluation(ctx, outcomeOf(result))
	g.metrics.RecordTokens(ctx, result.Provider, result.Model, result.Usage.InputTokens, result.Usage.OutputTokens)

	if cacheable && key != "" {
		g.cache.Store(key, result)
	}
	return result, nil
}

// outcomeOf maps a result to the metric outcome attribute.
func outcomeOf(res *model.EvaluationResult) string {
	if res.Verdict == model.VerdictYes {
		return "yes"
	}
	return "no"
}

// IsNotFound reports whether err is the registry's not-found/config
// failure, for callers that want to distinguish setup mistakes from
// evaluation failures.
func IsNotFound(err error) bool {
	var cfgErr *model.ConfigError
	return errors.As(err, &cfgErr)
}
