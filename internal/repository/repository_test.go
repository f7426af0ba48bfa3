package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

func TestStatusCurrentNotFound(t *testing.T) {
	m := feed.NewMemory()
	repo := NewStatusRepository(m, DefaultPaths())
	if _, err := repo.Current(context.Background()); !errors.Is(err, feed.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStatusCurrentAndFlag(t *testing.T) {
	ctx := context.Background()
	m := feed.NewMemory()
	repo := NewStatusRepository(m, DefaultPaths())
	if err := repo.SetCurrent(ctx, map[string]any{"event": "train_detected", "eta_sec": 12}); err != nil {
		t.Fatalf("set current: %v", err)
	}
	fields, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if feed.String(fields, "event") != "train_detected" || feed.String(fields, "eta_sec") != "12" {
		t.Fatalf("fields = %+v", fields)
	}

	if err := repo.SetApproachFlag(ctx, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	snap, _ := m.Get(ctx, repo.FlagPath(), feed.Query{})
	if !FlagFromSnapshot(snap) {
		t.Fatal("expected flag true")
	}
	if FlagFromSnapshot(feed.Snapshot{Value: "nope"}) {
		t.Fatal("malformed flag should be false")
	}
}

func TestHistoryListKeepsLastEntries(t *testing.T) {
	ctx := context.Background()
	m := feed.NewMemory()
	paths := DefaultPaths()
	paths.HistoryLimit = 3
	repo := NewHistoryRepository(m, paths)
	for _, ev := range []string{"a", "b", "c", "d", "e"} {
		if _, err := repo.Append(ctx, model.HistoryRecord{Datetime: "2024-01-01 10:00:00", Event: ev}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, want := range []string{"c", "d", "e"} {
		if got[i].Event != want || got[i].Key == "" {
			t.Fatalf("record %d = %+v, want event %s", i, got[i], want)
		}
	}
}

func TestAlertsFromSnapshotUnwrapsEnvelope(t *testing.T) {
	snap := feed.Snapshot{Exists: true, Value: map[string]any{
		"k1": map[string]any{"value": map[string]any{
			"title": "Wrapped", "timestamp": "2024-01-01 10:00:00", "priority": "high", "isRead": "true",
		}},
		"k2": map[string]any{"id": "custom", "title": "Plain", "isRead": false},
		"k3": "garbage",
	}}
	got := AlertsFromSnapshot(snap)
	if len(got) != 2 {
		t.Fatalf("got %d alerts, want 2", len(got))
	}
	if got[0].ID != "k1" || got[0].Title != "Wrapped" || !got[0].IsRead || got[0].Priority != "high" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].ID != "custom" || got[1].Title != "Plain" || got[1].IsRead {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestComplaintCreateAndList(t *testing.T) {
	ctx := context.Background()
	m := feed.NewMemory()
	repo := NewComplaintRepository(m, DefaultPaths())
	id, err := repo.Create(ctx, model.Complaint{ID: "ignored", Type: "Sensor Issue", Details: "blinking", Status: model.ComplaintPending})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Type != "Sensor Issue" || list[0].Status != model.ComplaintPending {
		t.Fatalf("list = %+v", list)
	}

	boom := errors.New("permission denied")
	m.FailWrites(DefaultPaths().Complaints, boom)
	if _, err := repo.Create(ctx, model.Complaint{Type: "Other Issue"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestMetricsFromSnapshot(t *testing.T) {
	cases := []struct {
		name string
		snap feed.Snapshot
		want model.SafetyMetrics
	}{
		{"missing", feed.Snapshot{}, DefaultSafetyMetrics()},
		{
			"wrapped and bare",
			feed.Snapshot{Exists: true, Value: map[string]any{
				"train_status":    map[string]any{"value": "45"},
				"track_condition": "98%",
				"safety_score":    float64(95),
			}},
			model.SafetyMetrics{TrainStatus: "45", TrackCondition: "98%", ActiveAlertsCount: "0", SafetyScore: "95"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MetricsFromSnapshot(tc.snap); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSeedPopulateAndClear(t *testing.T) {
	ctx := context.Background()
	m := feed.NewMemory()
	paths := DefaultPaths()
	alerts := NewAlertRepository(m, paths)
	complaints := NewComplaintRepository(m, paths)
	metrics := NewSafetyMetricsRepository(m, paths)
	seed := NewSeedRepository(alerts, complaints, NewIncidentRepository(m, paths), metrics)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	counts, err := seed.Populate(ctx, now)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	want := SeedCounts{GateEvents: 6, Complaints: 7, Alerts: 5, Incidents: 3, Metrics: 4}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}

	snap, _ := m.Get(ctx, paths.GateEvents, feed.Query{Children: true})
	events := GateEventsFromSnapshot(snap)
	if len(events) != 6 || events[0].Timestamp != "2024-03-01 11:55:00" || events[0].Event != "closed" {
		t.Fatalf("events = %+v", events)
	}
	snap, _ = m.Get(ctx, paths.SafetyMetrics, feed.Query{})
	if got := MetricsFromSnapshot(snap); got.TrackCondition != "98%" || got.SafetyScore != "95" {
		t.Fatalf("metrics = %+v", got)
	}
	snap, _ = m.Get(ctx, paths.Incidents, feed.Query{Children: true})
	if got := IncidentsFromSnapshot(snap); len(got) != 3 || got[0].ID == "" {
		t.Fatalf("incidents = %+v", got)
	}

	if err := seed.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	snap, _ = m.Get(ctx, paths.GateEvents, feed.Query{Children: true})
	if snap.Exists {
		t.Fatalf("gate events remain: %+v", snap.Value)
	}
	list, _ := complaints.List(ctx)
	if len(list) != 0 {
		t.Fatalf("complaints remain: %+v", list)
	}
	snap, _ = m.Get(ctx, paths.Alerts, feed.Query{Children: true})
	if len(AlertsFromSnapshot(snap)) != 5 {
		t.Fatal("clear must keep system alerts")
	}
}
