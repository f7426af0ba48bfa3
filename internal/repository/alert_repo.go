package repository

import (
	"context"
	"fmt"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// AlertRepository reads the three alert sources: system alerts, gate events and complaints.
type AlertRepository struct {
	feed       feed.Feed
	alerts     string
	gateEvents string
	complaints string
}

func NewAlertRepository(f feed.Feed, paths Paths) *AlertRepository {
	return &AlertRepository{
		feed:       f,
		alerts:     paths.Alerts,
		gateEvents: paths.GateEvents,
		complaints: paths.Complaints,
	}
}

// SourcePaths maps each alert source name to its feed path.
func (r *AlertRepository) SourcePaths() map[string]string {
	return map[string]string{
		"alerts":      r.alerts,
		"gate_events": r.gateEvents,
		"complaints":  r.complaints,
	}
}

// Subscribe watches the collection behind one source path.
func (r *AlertRepository) Subscribe(ctx context.Context, path string) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, path, feed.Query{Children: true})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return sub, nil
}

// PushAlert appends a system alert.
func (r *AlertRepository) PushAlert(ctx context.Context, a model.Alert) (string, error) {
	value := map[string]any{
		"title":     a.Title,
		"message":   a.Message,
		"timestamp": a.Timestamp,
		"priority":  string(a.Priority),
		"type":      a.Type,
		"isRead":    a.IsRead,
	}
	key, err := r.feed.Push(ctx, r.alerts, value)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.alerts, err)
	}
	return key, nil
}

// PushGateEvent appends a gate event.
func (r *AlertRepository) PushGateEvent(ctx context.Context, ev model.GateEvent) (string, error) {
	ev.ID = ""
	key, err := r.feed.Push(ctx, r.gateEvents, ev)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.gateEvents, err)
	}
	return key, nil
}

// ClearGateEvents removes every gate event.
func (r *AlertRepository) ClearGateEvents(ctx context.Context) error {
	if err := r.feed.Delete(ctx, r.gateEvents); err != nil {
		return fmt.Errorf("delete %s: %w", r.gateEvents, err)
	}
	return nil
}

// AlertsFromSnapshot decodes the alerts collection. Entries may be wrapped in a
// {"value": {...}} envelope.
func AlertsFromSnapshot(snap feed.Snapshot) []model.Alert {
	children := snap.Children()
	out := make([]model.Alert, 0, len(children))
	for _, c := range children {
		fields := c.Fields()
		if fields == nil {
			continue
		}
		id := feed.String(fields, "id")
		if id == "" {
			id = c.Key
		}
		out = append(out, model.Alert{
			ID:        id,
			Title:     feed.String(fields, "title"),
			Message:   feed.String(fields, "message"),
			Timestamp: feed.String(fields, "timestamp"),
			Priority:  model.Priority(feed.String(fields, "priority")),
			Type:      feed.String(fields, "type"),
			IsRead:    feed.Bool(fields, "isRead"),
		})
	}
	return out
}

// GateEventsFromSnapshot decodes the gate events collection.
func GateEventsFromSnapshot(snap feed.Snapshot) []model.GateEvent {
	children := snap.Children()
	out := make([]model.GateEvent, 0, len(children))
	for _, c := range children {
		fields := c.Fields()
		if fields == nil {
			continue
		}
		out = append(out, model.GateEvent{
			ID:        c.Key,
			Event:     feed.String(fields, "event"),
			Timestamp: feed.String(fields, "timestamp"),
			Status:    feed.String(fields, "status"),
		})
	}
	return out
}

// ComplaintsFromSnapshot decodes the complaints collection.
func ComplaintsFromSnapshot(snap feed.Snapshot) []model.Complaint {
	children := snap.Children()
	out := make([]model.Complaint, 0, len(children))
	for _, c := range children {
		fields := c.Fields()
		if fields == nil {
			continue
		}
		out = append(out, model.Complaint{
			ID:        c.Key,
			Type:      feed.String(fields, "type"),
			Details:   feed.String(fields, "details"),
			Timestamp: feed.String(fields, "timestamp"),
			Status:    model.ComplaintStatus(feed.String(fields, "status")),
			UserEmail: feed.String(fields, "userEmail"),
			UserPhone: feed.String(fields, "userPhone"),
		})
	}
	return out
}
