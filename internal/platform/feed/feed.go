// Package feed abstracts the realtime key/value tree the crossing controller writes to.
// Every backend delivers a full snapshot of the watched path on each change.
package feed

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnsupported is returned when a backend cannot express an operation on a path.
	ErrUnsupported = errors.New("feed: operation not supported for path")
	// ErrNotFound is returned by one-shot reads when nothing is stored at a path.
	ErrNotFound = errors.New("feed: no data at path")
	// ErrEmptyPath is returned for blank paths.
	ErrEmptyPath = errors.New("feed: empty path")
)

// Query narrows what a read or subscription returns.
// Children marks the path as a keyed list; LimitToLast keeps only the last N keys.
type Query struct {
	Children    bool
	LimitToLast int
}

// Feed is the remote store contract used by the repositories.
type Feed interface {
	Subscribe(ctx context.Context, path string, q Query) (*Subscription, error)
	Get(ctx context.Context, path string, q Query) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	// Push appends value under path with a store-assigned, key-ordered id.
	Push(ctx context.Context, path string, value any) (string, error)
	Delete(ctx context.Context, path string) error
}

// Event is one delivery on a subscription: either a snapshot or a transient error.
type Event struct {
	Snapshot Snapshot
	Err      error
}

// Subscription is a live watch on a path. Events is closed once the watch ends.
type Subscription struct {
	Events <-chan Event

	cancel context.CancelFunc
	once   sync.Once
}

// NewSubscription wraps a producer channel and its cancel func.
func NewSubscription(events <-chan Event, cancel context.CancelFunc) *Subscription {
	return &Subscription{Events: events, cancel: cancel}
}

// Cancel stops the watch. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Snapshot is a point-in-time read of a path's subtree.
type Snapshot struct {
	Path   string
	Exists bool
	Value  any
}

// Child is a keyed entry of a list-shaped snapshot.
type Child struct {
	Key   string
	Value any
}

// Children returns the entries of a map-valued snapshot ordered by key.
func (s Snapshot) Children() []Child {
	m, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Child, 0, len(keys))
	for _, k := range keys {
		out = append(out, Child{Key: k, Value: m[k]})
	}
	return out
}

// Fields returns the snapshot value as a field map, unwrapping a {"value": {...}} envelope.
func (s Snapshot) Fields() map[string]any {
	return asFields(s.Value)
}

// Fields returns the child value as a field map, unwrapping a {"value": {...}} envelope.
func (c Child) Fields() map[string]any {
	return asFields(c.Value)
}

func asFields(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if len(m) == 1 {
		if inner, ok := m["value"].(map[string]any); ok {
			return inner
		}
	}
	return m
}

// String reads a field as text, tolerating numbers and booleans.
func String(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return strings.TrimSpace(stringify(t))
	}
}

// Bool reads a field as a boolean; "true" strings count.
func Bool(fields map[string]any, key string) bool {
	switch t := fields[key].(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// SplitPath normalizes a slash-separated path into its segments.
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, seg := range raw {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
