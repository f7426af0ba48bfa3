// Package monitor runs one dashboard session: it watches every feed path, derives
// the dashboard view from each delivery and pushes changes to a Publisher.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/alerts"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/metrics"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// Message types sent to the Publisher.
const (
	KindStatus        = "status"
	KindCountdown     = "countdown"
	KindApproach      = "approach"
	KindApproachFlag  = "approach_flag"
	KindHistory       = "history"
	KindAlerts        = "alerts"
	KindIncidents     = "incidents"
	KindSafetyMetrics = "safety_metrics"
)

// Publisher receives every derived change.
type Publisher interface {
	Publish(kind string, payload any)
}

// Deps wires a Monitor.
type Deps struct {
	Status        *repository.StatusRepository
	History       *repository.HistoryRepository
	Alerts        *repository.AlertRepository
	Incidents     *repository.IncidentRepository
	SafetyMetrics *repository.SafetyMetricsRepository

	Labels            crossing.Labels
	Location          *time.Location
	CountdownInterval time.Duration
	Publisher         Publisher
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// CountdownView is the live ETA and its progress bar.
type CountdownView struct {
	Remaining float64           `json:"remaining"`
	Progress  crossing.Progress `json:"progress"`
}

// Snapshot is the latest derived dashboard view.
type Snapshot struct {
	Status           model.DisplayStatus         `json:"status"`
	Countdown        CountdownView               `json:"countdown"`
	Approaching      bool                        `json:"approaching"`
	LastNotification *model.ApproachNotification `json:"lastNotification,omitempty"`
	History          []model.EventEntry          `json:"history"`
	Alerts           []model.Alert               `json:"alerts"`
	Incidents        []model.Incident            `json:"incidents"`
	SafetyMetrics    model.SafetyMetrics         `json:"safetyMetrics"`
}

// Monitor owns the subscriptions and derived state of one session.
type Monitor struct {
	deps       Deps
	reconciler *crossing.Reconciler
	projector  *crossing.Projector
	trigger    *crossing.Trigger
	countdown  *crossing.Countdown
	progress   *crossing.ProgressTracker
	aggregator *alerts.Aggregator
	registry   *feed.Registry

	mu       sync.RWMutex
	view     Snapshot
	started  bool
	closed   bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a stopped Monitor showing the loading state.
func New(deps Deps) (*Monitor, error) {
	if deps.Status == nil || deps.History == nil || deps.Alerts == nil || deps.Incidents == nil || deps.SafetyMetrics == nil {
		return nil, errors.New("monitor: every repository is required")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Labels.Events == nil {
		deps.Labels = crossing.DefaultLabels()
	}

	m := &Monitor{
		deps:       deps,
		reconciler: crossing.NewReconciler(deps.Labels, crossing.WithClock(deps.Now), crossing.WithLocation(deps.Location)),
		projector:  crossing.NewProjector(deps.Labels),
		progress:   crossing.NewProgressTracker(),
		aggregator: alerts.NewAggregator(deps.Location, alerts.SourceAlerts, alerts.SourceGateEvents, alerts.SourceComplaints),
		registry:   feed.NewRegistry(),
	}
	m.trigger = crossing.NewTrigger(m.onApproach)
	m.countdown = crossing.NewCountdown(deps.CountdownInterval, m.onTick)
	m.aggregator.OnChange(m.onAlerts)
	m.view = Snapshot{
		Status:        crossing.LoadingStatus(),
		Countdown:     CountdownView{Progress: crossing.Progress{Proximity: crossing.ProximityOf(0)}},
		History:       []model.EventEntry{},
		Alerts:        []model.Alert{},
		Incidents:     []model.Incident{},
		SafetyMetrics: repository.DefaultSafetyMetrics(),
	}
	return m, nil
}

type watch struct {
	path      string
	subscribe func(context.Context) (*feed.Subscription, error)
	apply     func(feed.Snapshot)
	fallback  func()
}

func (m *Monitor) watches() []watch {
	d := m.deps
	sourcePaths := d.Alerts.SourcePaths()
	source := func(name string, decode func(feed.Snapshot) []model.Alert) watch {
		path := sourcePaths[name]
		return watch{
			path:      path,
			subscribe: func(ctx context.Context) (*feed.Subscription, error) { return d.Alerts.Subscribe(ctx, path) },
			apply:     func(s feed.Snapshot) { m.aggregator.Update(name, decode(s)) },
			fallback:  func() { m.aggregator.Clear(name) },
		}
	}
	return []watch{
		{path: d.Status.Path(), subscribe: d.Status.Subscribe, apply: m.applyStatus, fallback: m.statusFallback},
		{path: d.Status.FlagPath(), subscribe: d.Status.SubscribeFlag, apply: m.applyFlag, fallback: func() { m.setFlag(false) }},
		{path: d.History.Path(), subscribe: d.History.Subscribe, apply: m.applyHistory, fallback: func() { m.setHistory([]model.EventEntry{}) }},
		source(alerts.SourceAlerts, func(s feed.Snapshot) []model.Alert {
			return alerts.FromAlerts(repository.AlertsFromSnapshot(s))
		}),
		source(alerts.SourceGateEvents, func(s feed.Snapshot) []model.Alert {
			return alerts.FromGateEvents(repository.GateEventsFromSnapshot(s))
		}),
		source(alerts.SourceComplaints, func(s feed.Snapshot) []model.Alert {
			return alerts.FromComplaints(repository.ComplaintsFromSnapshot(s))
		}),
		{path: d.Incidents.Path(), subscribe: d.Incidents.Subscribe, apply: m.applyIncidents, fallback: func() { m.setIncidents([]model.Incident{}) }},
		{path: d.SafetyMetrics.Path(), subscribe: d.SafetyMetrics.Subscribe, apply: m.applyMetrics, fallback: func() { m.setMetrics(repository.DefaultSafetyMetrics()) }},
	}
}

// Start subscribes to every path. Subscriptions live until Close or ctx ends.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return errors.New("monitor: already started")
	}
	m.started = true
	m.mu.Unlock()

	for _, w := range m.watches() {
		sub, err := w.subscribe(ctx)
		if err != nil {
			m.registry.CancelAll()
			return fmt.Errorf("start monitor: %w", err)
		}
		m.registry.Register(w.path, sub.Cancel)
		m.wg.Add(1)
		go m.consume(w, sub)
	}
	log.Printf("monitor: watching %d paths", m.registry.Len())
	return nil
}

// consume applies deliveries of one path in order. A feed error resets that
// path's part of the view and the watch continues.
func (m *Monitor) consume(w watch, sub *feed.Subscription) {
	defer m.wg.Done()
	for ev := range sub.Events {
		m.deps.Metrics.FeedEvent(w.path, ev.Err)
		if ev.Err != nil {
			log.Printf("monitor: feed %s: %v", w.path, ev.Err)
			w.fallback()
			continue
		}
		w.apply(ev.Snapshot)
	}
}

// Close cancels every subscription and the countdown and waits for the consumers.
func (m *Monitor) Close() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		n := m.registry.CancelAll()
		m.wg.Wait()
		m.countdown.Stop()
		log.Printf("monitor: closed %d subscriptions", n)
	})
}

// Snapshot returns a copy of the current view.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.view
	s.History = append([]model.EventEntry(nil), m.view.History...)
	s.Alerts = append([]model.Alert(nil), m.view.Alerts...)
	s.Incidents = append([]model.Incident(nil), m.view.Incidents...)
	return s
}

// Alerts returns the combined alert feed narrowed by f.
func (m *Monitor) Alerts(f alerts.Filter) []model.Alert {
	return f.Apply(m.aggregator.Combined())
}

// AlertViews renders the filtered feed with relative times as of now.
func (m *Monitor) AlertViews(f alerts.Filter) []alerts.View {
	return alerts.Views(m.Alerts(f), m.deps.Now(), m.deps.Location)
}

// Republish pushes the alert feed again so relative labels stay current.
func (m *Monitor) Republish() {
	m.publish(KindAlerts, m.AlertViews(alerts.FilterAll))
}

// Message is one typed payload of the initial dashboard state.
type Message struct {
	Kind    string
	Payload any
}

// InitialMessages lists what a newly connected client needs to render the dashboard.
func (m *Monitor) InitialMessages() []Message {
	s := m.Snapshot()
	return []Message{
		{KindStatus, s.Status},
		{KindCountdown, s.Countdown},
		{KindApproachFlag, s.Approaching},
		{KindHistory, s.History},
		{KindAlerts, m.AlertViews(alerts.FilterAll)},
		{KindIncidents, s.Incidents},
		{KindSafetyMetrics, s.SafetyMetrics},
	}
}

func (m *Monitor) publish(kind string, payload any) {
	if m.deps.Publisher != nil {
		m.deps.Publisher.Publish(kind, payload)
	}
}
