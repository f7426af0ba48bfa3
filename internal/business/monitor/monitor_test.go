package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/alerts"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Publish(kind string, payload any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{Kind: kind, Payload: payload})
	r.mu.Unlock()
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fixture struct {
	mem   *feed.Memory
	paths repository.Paths
	pub   *recorder
	mon   *Monitor
}

func start(t *testing.T) *fixture {
	t.Helper()
	mem := feed.NewMemory()
	paths := repository.DefaultPaths()
	pub := &recorder{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mon, err := New(Deps{
		Status:            repository.NewStatusRepository(mem, paths),
		History:           repository.NewHistoryRepository(mem, paths),
		Alerts:            repository.NewAlertRepository(mem, paths),
		Incidents:         repository.NewIncidentRepository(mem, paths),
		SafetyMetrics:     repository.NewSafetyMetricsRepository(mem, paths),
		Location:          time.UTC,
		CountdownInterval: time.Hour,
		Publisher:         pub,
		Now:               func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(mon.Close)
	return &fixture{mem: mem, paths: paths, pub: pub, mon: mon}
}

func (f *fixture) setStatus(t *testing.T, fields map[string]any) {
	t.Helper()
	if err := f.mem.Set(context.Background(), f.paths.Status, fields); err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func TestNewRequiresRepositories(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error for missing repositories")
	}
}

func TestStatusDrivesCountdownAndTrigger(t *testing.T) {
	f := start(t)
	if got := f.mon.Snapshot().Status; got != crossing.LoadingStatus() {
		t.Fatalf("initial status = %+v", got)
	}

	f.setStatus(t, map[string]any{"event": "train_detected", "gate_status": "closing", "speed_kmh": "42.5", "eta_sec": 12})
	waitFor(t, "approaching status", func() bool { return f.mon.Snapshot().Status.ETA == "12.00" })
	s := f.mon.Snapshot()
	if s.Status.TrainStatus != "Train Approaching" || s.Status.Speed != "42.50" || s.Status.GateStatus != "Closing" {
		t.Fatalf("status = %+v", s.Status)
	}
	if s.Countdown.Remaining != 12 || s.Countdown.Progress.Proximity != crossing.ProximityApproaching {
		t.Fatalf("countdown = %+v", s.Countdown)
	}
	waitFor(t, "approach notification", func() bool { return f.pub.count(KindApproach) == 1 })

	f.setStatus(t, map[string]any{"event": "speed_calculated", "gate_status": "closed", "speed_kmh": 40, "eta_sec": 4})
	waitFor(t, "countdown restart", func() bool { return f.mon.Snapshot().Countdown.Remaining == 4 })

	f.setStatus(t, map[string]any{"event": "train_crossed", "gate_status": "opening", "speed_kmh": 40, "eta_sec": 4})
	waitFor(t, "crossed status", func() bool { return f.mon.Snapshot().Status.TrainStatus == "Train Crossed" })
	s = f.mon.Snapshot()
	if s.Status.Speed != "0.00" || s.Status.ETA != "0.00" || s.Countdown.Remaining != 0 {
		t.Fatalf("crossed snapshot = %+v", s)
	}
	if f.mon.countdown.Running() {
		t.Fatal("countdown must stop on crossed")
	}
	if n := f.pub.count(KindApproach); n != 1 {
		t.Fatalf("approach notifications = %d, want 1", n)
	}
	if s.LastNotification == nil || s.LastNotification.Status != "Train Approaching" {
		t.Fatalf("last notification = %+v", s.LastNotification)
	}
}

func TestApproachFlagDoesNotDoubleNotify(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	f.setStatus(t, map[string]any{"event": "speed_calculated", "eta_sec": 9})
	waitFor(t, "notification", func() bool { return f.pub.count(KindApproach) == 1 })

	if err := repository.NewStatusRepository(f.mem, f.paths).SetApproachFlag(ctx, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	waitFor(t, "flag", func() bool { return f.mon.Snapshot().Approaching })
	time.Sleep(20 * time.Millisecond)
	if n := f.pub.count(KindApproach); n != 1 {
		t.Fatalf("approach notifications = %d, want 1", n)
	}
}

func TestFlagRedeliveryAfterCrossingDoesNotNotify(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	statusRepo := repository.NewStatusRepository(f.mem, f.paths)

	f.setStatus(t, map[string]any{"event": "train_detected", "eta_sec": 15})
	waitFor(t, "notification", func() bool { return f.pub.count(KindApproach) == 1 })
	if err := statusRepo.SetApproachFlag(ctx, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	waitFor(t, "flag", func() bool { return f.mon.Snapshot().Approaching })

	f.setStatus(t, map[string]any{"event": "train_crossed", "gate_status": "opening"})
	waitFor(t, "crossed", func() bool { return f.mon.Snapshot().Status.TrainStatus == "Train Crossed" })

	// initial delivery plus the raised flag
	waitFor(t, "flag publishes", func() bool { return f.pub.count(KindApproachFlag) >= 2 })

	// same value written again, then a lowered and re-raised flag
	flags := f.pub.count(KindApproachFlag)
	for _, v := range []bool{true, false, true} {
		if err := statusRepo.SetApproachFlag(ctx, v); err != nil {
			t.Fatalf("set flag: %v", err)
		}
		flags++
		want := flags
		waitFor(t, "flag delivery", func() bool { return f.pub.count(KindApproachFlag) >= want })
	}
	time.Sleep(20 * time.Millisecond)
	if n := f.pub.count(KindApproach); n != 1 {
		t.Fatalf("approach notifications = %d, want 1 (status %q)", n, f.mon.Snapshot().Status.TrainStatus)
	}
}

func TestRaisedFlagNotifiesOnce(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	statusRepo := repository.NewStatusRepository(f.mem, f.paths)

	for i := 0; i < 2; i++ {
		if err := statusRepo.SetApproachFlag(ctx, true); err != nil {
			t.Fatalf("set flag: %v", err)
		}
	}
	waitFor(t, "notification", func() bool { return f.pub.count(KindApproach) == 1 })
	time.Sleep(20 * time.Millisecond)
	if n := f.pub.count(KindApproach); n != 1 {
		t.Fatalf("approach notifications = %d, want 1", n)
	}
}

func TestCountdownStopsOnGateEvent(t *testing.T) {
	f := start(t)
	f.setStatus(t, map[string]any{"event": "train_detected", "eta_sec": 30})
	waitFor(t, "countdown", func() bool { return f.mon.countdown.Running() })

	f.setStatus(t, map[string]any{"event": "gate_closed", "gate_status": "closed", "eta_sec": 30})
	waitFor(t, "gate status", func() bool { return f.mon.Snapshot().Status.TrainStatus == "Gate Closed" })
	if f.mon.countdown.Running() {
		t.Fatal("countdown must stop once the status is no longer approaching")
	}
	if got := f.mon.Snapshot().Countdown.Remaining; got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
}

func TestStatusErrorFallsBackToLoading(t *testing.T) {
	f := start(t)
	f.setStatus(t, map[string]any{"event": "train_detected", "eta_sec": 20})
	waitFor(t, "status", func() bool { return f.mon.Snapshot().Status.ETA == "20.00" })

	f.mem.InjectError(f.paths.Status, errors.New("permission denied"))
	waitFor(t, "loading fallback", func() bool { return f.mon.Snapshot().Status == crossing.LoadingStatus() })
	if f.mon.countdown.Running() {
		t.Fatal("countdown must stop on feed error")
	}

	f.setStatus(t, map[string]any{"event": "system_reset", "gate_status": "closed"})
	waitFor(t, "recovery", func() bool { return f.mon.Snapshot().Status.GateStatus == "Open" })
}

func TestAlertsAndHistoryFlowIntoView(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	alertRepo := repository.NewAlertRepository(f.mem, f.paths)
	history := repository.NewHistoryRepository(f.mem, f.paths)

	if _, err := alertRepo.PushGateEvent(ctx, model.GateEvent{Event: "closed", Timestamp: "2024-03-01 11:50:00", Status: "active"}); err != nil {
		t.Fatalf("push gate event: %v", err)
	}
	if _, err := repository.NewComplaintRepository(f.mem, f.paths).Create(ctx, model.Complaint{
		Type: "Sensor Issue", Details: "blinking", Timestamp: "2024-03-01 11:55:00", Status: model.ComplaintResolved,
	}); err != nil {
		t.Fatalf("create complaint: %v", err)
	}
	waitFor(t, "combined alerts", func() bool { return len(f.mon.Snapshot().Alerts) == 2 })

	combined := f.mon.Snapshot().Alerts
	if combined[0].Source != alerts.SourceComplaints || combined[1].Title != "Gate Closed" {
		t.Fatalf("combined = %+v", combined)
	}
	if active := f.mon.Alerts(alerts.FilterActive); len(active) != 1 || active[0].Title != "Gate Closed" {
		t.Fatalf("active = %+v", active)
	}
	views := f.mon.AlertViews(alerts.FilterAll)
	if views[0].Relative != "5 mins ago" {
		t.Fatalf("relative = %q", views[0].Relative)
	}

	if _, err := history.Append(ctx, model.HistoryRecord{Datetime: "2024-03-01 11:49:00", Event: "train_detected", GateStatus: "closing"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitFor(t, "history", func() bool { return len(f.mon.Snapshot().History) == 1 })
	if got := f.mon.Snapshot().History[0].Description; got != "Train Approaching - Gate: Closing" {
		t.Fatalf("description = %q", got)
	}

	f.mem.InjectError(f.paths.GateEvents, errors.New("unavailable"))
	waitFor(t, "gate events cleared", func() bool { return len(f.mon.Snapshot().Alerts) == 1 })
}

func TestSafetyMetricsAndIncidents(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	if got := f.mon.Snapshot().SafetyMetrics; got != repository.DefaultSafetyMetrics() {
		t.Fatalf("default metrics = %+v", got)
	}
	if err := repository.NewSafetyMetricsRepository(f.mem, f.paths).Set(ctx, repository.MetricSafetyScore, "95"); err != nil {
		t.Fatalf("set metric: %v", err)
	}
	waitFor(t, "metrics", func() bool { return f.mon.Snapshot().SafetyMetrics.SafetyScore == "95" })

	if _, err := repository.NewIncidentRepository(f.mem, f.paths).PushIncident(ctx, model.Incident{Title: "Sensor Offline"}); err != nil {
		t.Fatalf("push incident: %v", err)
	}
	waitFor(t, "incidents", func() bool { return len(f.mon.Snapshot().Incidents) == 1 })
}

func TestCloseCancelsSubscriptions(t *testing.T) {
	f := start(t)
	waitFor(t, "subscribed", func() bool { return f.mem.Subscribers(f.paths.Status) == 1 })
	f.mon.Close()
	waitFor(t, "unsubscribed", func() bool { return f.mem.Subscribers(f.paths.Status) == 0 })
	if err := f.mon.Start(context.Background()); err == nil {
		t.Fatal("expected Start after Close to fail")
	}
	if len(f.mon.InitialMessages()) != 7 {
		t.Fatal("initial messages should cover every view part")
	}
}
