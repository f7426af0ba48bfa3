package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Feed. It backs local development, the seed tool's
// dry runs and tests. Writes notify every subscriber whose path overlaps.
type Memory struct {
	mu         sync.Mutex
	root       map[string]any
	subs       map[*memSub]struct{}
	failWrites map[string]error
}

var _ Feed = (*Memory)(nil)

// NewMemory creates an empty in-memory tree.
func NewMemory() *Memory {
	return &Memory{
		root:       make(map[string]any),
		subs:       make(map[*memSub]struct{}),
		failWrites: make(map[string]error),
	}
}

type memSub struct {
	segs  []string
	query Query
	wake  chan struct{}

	mu    sync.Mutex
	dirty bool
	errs  []error
}

func (s *memSub) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Subscribe delivers the current value of path, then a fresh snapshot after every
// overlapping write. Bursts of writes are coalesced into the latest state.
func (m *Memory) Subscribe(ctx context.Context, path string, q Query) (*Subscription, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, ErrEmptyPath
	}
	s := &memSub{segs: segs, query: q, wake: make(chan struct{}, 1), dirty: true}

	m.mu.Lock()
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 1)
	go m.run(ctx, s, out)
	s.signal()
	return NewSubscription(out, cancel), nil
}

func (m *Memory) run(ctx context.Context, s *memSub, out chan<- Event) {
	defer close(out)
	defer func() {
		m.mu.Lock()
		delete(m.subs, s)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		errs, dirty := s.errs, s.dirty
		s.errs, s.dirty = nil, false
		s.mu.Unlock()

		for _, err := range errs {
			if !send(ctx, out, Event{Err: err}) {
				return
			}
		}
		if !dirty {
			continue
		}
		m.mu.Lock()
		snap := m.snapshotLocked(s.segs, s.query)
		m.mu.Unlock()
		if !send(ctx, out, Event{Snapshot: snap}) {
			return
		}
	}
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Get returns the current value at path.
func (m *Memory) Get(_ context.Context, path string, q Query) (Snapshot, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return Snapshot{}, ErrEmptyPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(segs, q), nil
}

// Set replaces the value at path. A nil value removes it.
func (m *Memory) Set(_ context.Context, path string, value any) error {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return ErrEmptyPath
	}
	v, err := Normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrLocked(segs); err != nil {
		return err
	}
	m.writeLocked(segs, v)
	return nil
}

// Push stores value under a new time-ordered key below path.
func (m *Memory) Push(_ context.Context, path string, value any) (string, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return "", ErrEmptyPath
	}
	v, err := Normalize(value)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate push key: %w", err)
	}
	key := id.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrLocked(segs); err != nil {
		return "", err
	}
	m.writeLocked(append(segs, key), v)
	return key, nil
}

// Delete removes the subtree at path.
func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Set(ctx, path, nil)
}

// InjectError delivers err to every subscriber of exactly path without changing data.
func (m *Memory) InjectError(path string, err error) {
	target := strings.Join(SplitPath(path), "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs {
		if strings.Join(s.segs, "/") != target {
			continue
		}
		s.mu.Lock()
		s.errs = append(s.errs, err)
		s.mu.Unlock()
		s.signal()
	}
}

// FailWrites makes every write at or below path return err. A nil err clears it.
func (m *Memory) FailWrites(path string, err error) {
	key := strings.Join(SplitPath(path), "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failWrites, key)
		return
	}
	m.failWrites[key] = err
}

// Subscribers reports how many live subscriptions watch exactly path.
func (m *Memory) Subscribers(path string) int {
	target := strings.Join(SplitPath(path), "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for s := range m.subs {
		if strings.Join(s.segs, "/") == target {
			n++
		}
	}
	return n
}

func (m *Memory) writeErrLocked(segs []string) error {
	for i := len(segs); i > 0; i-- {
		if err, ok := m.failWrites[strings.Join(segs[:i], "/")]; ok {
			return err
		}
	}
	return nil
}

func (m *Memory) writeLocked(segs []string, v any) {
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			if v == nil {
				return
			}
			next = make(map[string]any)
			node[seg] = next
		}
		node = next
	}
	last := segs[len(segs)-1]
	if v == nil {
		delete(node, last)
	} else {
		node[last] = v
	}

	for s := range m.subs {
		if overlaps(s.segs, segs) {
			s.mu.Lock()
			s.dirty = true
			s.mu.Unlock()
			s.signal()
		}
	}
}

func (m *Memory) snapshotLocked(segs []string, q Query) Snapshot {
	path := strings.Join(segs, "/")
	var cur any = m.root
	for _, seg := range segs {
		node, ok := cur.(map[string]any)
		if !ok {
			return Snapshot{Path: path}
		}
		if cur, ok = node[seg]; !ok {
			return Snapshot{Path: path}
		}
	}
	if node, ok := cur.(map[string]any); ok && q.Children && q.LimitToLast > 0 {
		cur = lastChildren(node, q.LimitToLast)
	}
	v, _ := Normalize(cur)
	return Snapshot{Path: path, Exists: v != nil, Value: v}
}

func lastChildren(node map[string]any, n int) map[string]any {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = node[k]
	}
	return out
}

func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
