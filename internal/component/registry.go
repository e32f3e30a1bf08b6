package component

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"flowkit/internal/metrics"
)

// Registry holds the components a host can place in a flow.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
}

func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Component)}
}

func (r *Registry) Register(c Component) error {
	name := c.Schema().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.components[name] = c
	return nil
}

// MustRegister is Register for static wiring at startup.
func (r *Registry) MustRegister(cs ...Component) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// Catalog returns every schema sorted by component name.
func (r *Registry) Catalog() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.Schema())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reference points a parameter at another component whose output becomes its value.
type Reference struct {
	Component string `json:"component" mapstructure:"component"`
	Params    Params `json:"params" mapstructure:"params"`
}

func asReference(v any) (Reference, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Reference{}, false
	}
	name, ok := m["component"].(string)
	if !ok || name == "" {
		return Reference{}, false
	}
	ref := Reference{Component: name}
	for k, v := range m {
		switch k {
		case "component":
		case "params":
			p, ok := v.(map[string]any)
			if !ok {
				return Reference{}, false
			}
			ref.Params = p
		default:
			return Reference{}, false
		}
	}
	return ref, true
}

// Build resolves component references in params, then builds the named component.
func (r *Registry) Build(ctx context.Context, name string, params Params) (Output, error) {
	c, err := r.Get(name)
	if err != nil {
		return Output{}, err
	}

	resolved := make(Params, len(params))
	for k, v := range params {
		ref, ok := asReference(v)
		if !ok {
			resolved[k] = v
			continue
		}
		out, err := r.Build(ctx, ref.Component, ref.Params)
		if err != nil {
			return Output{}, fmt.Errorf("build %s for %s.%s: %w", ref.Component, name, k, err)
		}
		resolved[k] = out.Value()
	}

	start := time.Now()
	out, err := c.Build(ctx, resolved)
	metrics.BuildDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BuildsTotal.WithLabelValues(name, "error").Inc()
		slog.ErrorContext(ctx, "component build failed", "component", name, "error", err)
		return Output{}, err
	}
	metrics.BuildsTotal.WithLabelValues(name, "success").Inc()
	slog.DebugContext(ctx, "component built", "component", name, "output", out.Kind)
	return out, nil
}
