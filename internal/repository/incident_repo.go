package repository

import (
	"context"
	"fmt"
	"path"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// Safety metric names under the safety metrics path.
const (
	MetricTrainStatus       = "train_status"
	MetricTrackCondition    = "track_condition"
	MetricActiveAlertsCount = "active_alerts_count"
	MetricSafetyScore       = "safety_score"
)

// IncidentRepository reads the incidents collection.
type IncidentRepository struct {
	feed feed.Feed
	path string
}

func NewIncidentRepository(f feed.Feed, paths Paths) *IncidentRepository {
	return &IncidentRepository{feed: f, path: paths.Incidents}
}

func (r *IncidentRepository) Path() string { return r.path }

func (r *IncidentRepository) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, r.path, feed.Query{Children: true})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.path, err)
	}
	return sub, nil
}

// PushIncident appends an incident.
func (r *IncidentRepository) PushIncident(ctx context.Context, in model.Incident) (string, error) {
	value := map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"timestamp":   in.Timestamp,
		"severity":    in.Severity,
		"location":    in.Location,
		"status":      in.Status,
	}
	key, err := r.feed.Push(ctx, r.path, value)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.path, err)
	}
	return key, nil
}

// Clear removes every incident.
func (r *IncidentRepository) Clear(ctx context.Context) error {
	if err := r.feed.Delete(ctx, r.path); err != nil {
		return fmt.Errorf("delete %s: %w", r.path, err)
	}
	return nil
}

// SafetyMetricsRepository reads and writes the dashboard header metrics.
type SafetyMetricsRepository struct {
	feed feed.Feed
	path string
}

func NewSafetyMetricsRepository(f feed.Feed, paths Paths) *SafetyMetricsRepository {
	return &SafetyMetricsRepository{feed: f, path: paths.SafetyMetrics}
}

func (r *SafetyMetricsRepository) Path() string { return r.path }

func (r *SafetyMetricsRepository) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, r.path, feed.Query{})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.path, err)
	}
	return sub, nil
}

// Set writes one metric as {"value": v}.
func (r *SafetyMetricsRepository) Set(ctx context.Context, name, value string) error {
	p := path.Join(r.path, name)
	if err := r.feed.Set(ctx, p, map[string]any{"value": value}); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

// IncidentsFromSnapshot decodes the incidents collection.
func IncidentsFromSnapshot(snap feed.Snapshot) []model.Incident {
	children := snap.Children()
	out := make([]model.Incident, 0, len(children))
	for _, c := range children {
		fields := c.Fields()
		if fields == nil {
			continue
		}
		out = append(out, model.Incident{
			ID:          c.Key,
			Title:       feed.String(fields, "title"),
			Description: feed.String(fields, "description"),
			Timestamp:   feed.String(fields, "timestamp"),
			Severity:    feed.String(fields, "severity"),
			Location:    feed.String(fields, "location"),
			Status:      feed.String(fields, "status"),
		})
	}
	return out
}

// DefaultSafetyMetrics is shown while no metric has been written.
func DefaultSafetyMetrics() model.SafetyMetrics {
	return model.SafetyMetrics{
		TrainStatus:       "0",
		TrackCondition:    "0%",
		ActiveAlertsCount: "0",
		SafetyScore:       "0",
	}
}

// MetricsFromSnapshot decodes the safety metrics subtree. Each metric may be stored
// as {"value": v} or as a bare value; absent metrics keep their defaults.
func MetricsFromSnapshot(snap feed.Snapshot) model.SafetyMetrics {
	m := DefaultSafetyMetrics()
	fields, ok := snap.Value.(map[string]any)
	if !ok {
		return m
	}
	read := func(name string, dst *string) {
		metric := fields
		key := name
		if wrapped, ok := fields[name].(map[string]any); ok {
			metric, key = wrapped, "value"
		}
		if s := feed.String(metric, key); s != "" {
			*dst = s
		}
	}
	read(MetricTrainStatus, &m.TrainStatus)
	read(MetricTrackCondition, &m.TrackCondition)
	read(MetricActiveAlertsCount, &m.ActiveAlertsCount)
	read(MetricSafetyScore, &m.SafetyScore)
	return m
}
