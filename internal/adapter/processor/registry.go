package processor

import (
	"fmt"
	"sync"

	"github.com/cwygoda/grabber/internal/domain"
)

// Registry holds listing processors in registration order. It is safe
// for concurrent use by the HTTP intake and the worker.
type Registry struct {
	mu         sync.RWMutex
	processors []domain.URLProcessor
}

// NewRegistry creates a new processor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a processor. Names must be unique.
func (r *Registry) Register(p domain.URLProcessor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.processors {
		if existing.Name() == p.Name() {
			return fmt.Errorf("processor %q already registered", p.Name())
		}
	}
	r.processors = append(r.processors, p)
	return nil
}

// Match returns the first processor that matches the URL, or nil.
func (r *Registry) Match(url string) domain.URLProcessor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.processors {
		if p.Match(url) {
			return p
		}
	}
	return nil
}

// Accepts reports whether some processor handles url.
func (r *Registry) Accepts(url string) bool {
	return r.Match(url) != nil
}

// Processors returns a snapshot of the registered processors.
func (r *Registry) Processors() []domain.URLProcessor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.URLProcessor(nil), r.processors...)
}
