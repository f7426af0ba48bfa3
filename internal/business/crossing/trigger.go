package crossing

import (
	"sync"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// TriggerState is the approach-episode state of a Trigger.
type TriggerState int

const (
	Idle TriggerState = iota
	NotifiedForCurrentApproach
)

func (s TriggerState) String() string {
	if s == NotifiedForCurrentApproach {
		return "notified"
	}
	return "idle"
}

const (
	approachTitle   = "Train Approaching"
	approachMessage = "A train is approaching the gate. Please be cautious."
)

// Trigger emits one approach notification per approach episode.
type Trigger struct {
	emit func(model.ApproachNotification)
	now  func() time.Time

	mu    sync.Mutex
	state TriggerState
	prev  string
}

// NewTrigger creates an idle Trigger that calls emit for each notification.
func NewTrigger(emit func(model.ApproachNotification)) *Trigger {
	if emit == nil {
		emit = func(model.ApproachNotification) {}
	}
	return &Trigger{emit: emit, now: time.Now}
}

// Observe feeds the next train status text. It reports whether a notification was emitted.
func (t *Trigger) Observe(status string) bool {
	t.mu.Lock()
	prev := t.prev
	t.prev = status

	if IsCleared(status) {
		t.state = Idle
		t.mu.Unlock()
		return false
	}
	if !IsApproaching(status) || status == prev || t.state != Idle {
		t.mu.Unlock()
		return false
	}
	t.state = NotifiedForCurrentApproach
	n := model.ApproachNotification{
		Title:   approachTitle,
		Message: approachMessage,
		Status:  status,
		At:      t.now(),
	}
	t.mu.Unlock()

	t.emit(n)
	return true
}

// State returns the current episode state.
func (t *Trigger) State() TriggerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
