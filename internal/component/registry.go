package component

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Factory builds a backend from its stage params and the shared deps.
type Factory func(name string, params Params, deps Deps) (Component, error)

// Registry maps backend type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given type name. Re-registering a
// name replaces the previous factory.
func (r *Registry) Register(typeName string, f Factory) {
	r.factories[typeName] = f
}

// Build resolves a type name and constructs the backend. An unknown type
// is a configuration error.
func (r *Registry) Build(typeName, stageName string, params Params, deps Deps) (Component, error) {
	f, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (known: %v): %w",
			typeName, r.Types(), domain.ErrConfiguration)
	}
	c, err := f(stageName, params, deps)
	if err != nil {
		return nil, fmt.Errorf("build backend %q for stage %s: %w", typeName, stageName, err)
	}
	return c, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Params is the backend-specific settings map from stage configuration.
type Params map[string]string

// Float returns the parsed float value or def when absent. A present but
// unparsable value is an error.
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s: %q is not a number: %w", key, raw, domain.ErrConfiguration)
	}
	return v, nil
}

// Int returns the parsed int value or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("param %s: %q is not an integer: %w", key, raw, domain.ErrConfiguration)
	}
	return v, nil
}

// String returns the value or def when absent.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}
