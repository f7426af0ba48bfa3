package feed

import (
	"context"
	"sync"
)

// Registry tracks cancel functions for live subscriptions so a session can tear
// them all down together.
type Registry struct {
	mu      sync.RWMutex
	cancels map[string]context.CancelFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register stores the cancel function for a path, cancelling any previous
// subscription registered under the same path.
func (r *Registry) Register(path string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.cancels[path]; ok {
		prev()
	}
	r.cancels[path] = cancel
}

// Cancel invokes the cancel function for a path if it exists.
// Returns true if the subscription was found and cancelled.
func (r *Registry) Cancel(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[path]; ok {
		cancel()
		delete(r.cancels, path)
		return true
	}
	return false
}

// CancelAll cancels every registered subscription and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.cancels)
	for path, cancel := range r.cancels {
		cancel()
		delete(r.cancels, path)
	}
	return n
}

// IsActive checks if a subscription is currently registered for path.
func (r *Registry) IsActive(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cancels[path]
	return ok
}

// Len reports the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cancels)
}
