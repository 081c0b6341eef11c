// Package middleware holds the configurable HTTP middleware of the web UI
// and the registry that orders them.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
)

type Middleware interface {
	Name() string
	// Priority orders middleware; lower runs first.
	Priority() int
	Handler(next http.Handler) http.Handler
	Close() error
}

type Registry struct {
	mu     sync.RWMutex
	items  map[string]Middleware
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		items:  make(map[string]Middleware),
		logger: logger,
	}
}

func (r *Registry) Register(m Middleware) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if name == "" {
		return fmt.Errorf("middleware has empty name")
	}
	if _, exists := r.items[name]; exists {
		return fmt.Errorf("middleware %s already registered", name)
	}

	r.items[name] = m
	r.logger.Debug("middleware registered", "name", name, "priority", m.Priority())
	return nil
}

// Ordered returns the registered middleware by ascending priority, then name.
func (r *Registry) Ordered() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Middleware, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

func (r *Registry) Names() []string {
	ordered := r.Ordered()
	names := make([]string, len(ordered))
	for i, m := range ordered {
		names[i] = m.Name()
	}
	return names
}

// Apply installs the middleware on use in priority order.
func (r *Registry) Apply(use func(func(http.Handler) http.Handler)) {
	for _, m := range r.Ordered() {
		use(m.Handler)
	}
}

func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, m := range r.items {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close middleware %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing middleware: %v", errs)
	}
	return nil
}
