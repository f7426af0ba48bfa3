package feed

import (
	"context"
	"errors"
	"testing"
	"time"
)

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemorySubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Set(ctx, "RailwayGate/current", map[string]any{"event": "train_detected"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	sub, err := m.Subscribe(ctx, "RailwayGate/current", Query{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	ev := nextEvent(t, sub)
	if got := String(ev.Snapshot.Fields(), "event"); got != "train_detected" {
		t.Fatalf("initial event = %q", got)
	}

	if err := m.Set(ctx, "RailwayGate/current/event", "train_crossed"); err != nil {
		t.Fatalf("set child: %v", err)
	}
	ev = nextEvent(t, sub)
	if got := String(ev.Snapshot.Fields(), "event"); got != "train_crossed" {
		t.Fatalf("updated event = %q", got)
	}
}

func TestMemoryUnrelatedWriteDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	sub, err := m.Subscribe(ctx, "alerts", Query{Children: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()
	if ev := nextEvent(t, sub); ev.Snapshot.Exists {
		t.Fatalf("expected empty initial snapshot, got %+v", ev.Snapshot)
	}

	if err := m.Set(ctx, "complaints/x", map[string]any{"type": "Other Issue"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryLimitToLast(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"a", "b", "c", "d"} {
		if err := m.Set(ctx, "history/"+k, map[string]any{"event": k}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	snap, err := m.Get(ctx, "history", Query{Children: true, LimitToLast: 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	children := snap.Children()
	if len(children) != 2 || children[0].Key != "c" || children[1].Key != "d" {
		t.Fatalf("children = %+v", children)
	}
}

func TestMemoryPushKeysAreOrdered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var keys []string
	for i := 0; i < 5; i++ {
		k, err := m.Push(ctx, "complaints", map[string]any{"n": i})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		keys = append(keys, k)
	}
	snap, _ := m.Get(ctx, "complaints", Query{Children: true})
	children := snap.Children()
	if len(children) != len(keys) {
		t.Fatalf("got %d children, want %d", len(children), len(keys))
	}
	for i, c := range children {
		if c.Key != keys[i] {
			t.Fatalf("child %d key = %s, want %s", i, c.Key, keys[i])
		}
	}
}

func TestMemoryInjectErrorKeepsSubscription(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	sub, err := m.Subscribe(ctx, "alerts", Query{Children: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()
	nextEvent(t, sub)

	boom := errors.New("permission denied")
	m.InjectError("alerts", boom)
	if ev := nextEvent(t, sub); !errors.Is(ev.Err, boom) {
		t.Fatalf("expected injected error, got %+v", ev)
	}

	if err := m.Set(ctx, "alerts/a1", map[string]any{"title": "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ev := nextEvent(t, sub); ev.Err != nil || len(ev.Snapshot.Children()) != 1 {
		t.Fatalf("expected snapshot after error, got %+v", ev)
	}
}

func TestMemoryFailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("unavailable")
	m.FailWrites("complaints", boom)
	if _, err := m.Push(ctx, "complaints", map[string]any{"a": 1}); !errors.Is(err, boom) {
		t.Fatalf("push err = %v", err)
	}
	m.FailWrites("complaints", nil)
	if _, err := m.Push(ctx, "complaints", map[string]any{"a": 1}); err != nil {
		t.Fatalf("push after clear: %v", err)
	}
}

func TestMemoryCancelClosesEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	sub, err := m.Subscribe(ctx, "alerts", Query{Children: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, sub)
	sub.Cancel()
	sub.Cancel()

	select {
	case _, ok := <-sub.Events:
		if ok {
			// drain a racing delivery, the channel must close after it
			<-sub.Events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events not closed after cancel")
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.Subscribers("alerts") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryEmptyPath(t *testing.T) {
	m := NewMemory()
	if _, err := m.Subscribe(context.Background(), " / ", Query{}); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("err = %v", err)
	}
}

func TestChildFieldsUnwrapsValueEnvelope(t *testing.T) {
	c := Child{Key: "k", Value: map[string]any{"value": map[string]any{"title": "Wrapped"}}}
	if got := String(c.Fields(), "title"); got != "Wrapped" {
		t.Fatalf("title = %q", got)
	}
	plain := Child{Key: "k", Value: map[string]any{"title": "Plain", "value": 3}}
	if got := String(plain.Fields(), "title"); got != "Plain" {
		t.Fatalf("title = %q", got)
	}
}
