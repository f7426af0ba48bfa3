package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// SeedRepository writes sample dashboard data relative to a reference time.
type SeedRepository struct {
	alerts     *AlertRepository
	complaints *ComplaintRepository
	incidents  *IncidentRepository
	metrics    *SafetyMetricsRepository
}

func NewSeedRepository(alerts *AlertRepository, complaints *ComplaintRepository, incidents *IncidentRepository, metrics *SafetyMetricsRepository) *SeedRepository {
	return &SeedRepository{alerts: alerts, complaints: complaints, incidents: incidents, metrics: metrics}
}

// SeedCounts reports how many records each Populate step wrote.
type SeedCounts struct {
	GateEvents int
	Complaints int
	Alerts     int
	Incidents  int
	Metrics    int
}

type sample struct {
	ago    time.Duration
	fields [3]string
}

var sampleGateEvents = []sample{
	{5 * time.Minute, [3]string{"closed", "active"}},
	{10 * time.Minute, [3]string{"opened", "active"}},
	{30 * time.Minute, [3]string{"closed", "active"}},
	{2 * time.Hour, [3]string{"opened", "resolved"}},
	{5 * time.Hour, [3]string{"closed", "resolved"}},
	{24 * time.Hour, [3]string{"opened", "resolved"}},
}

var sampleComplaints = []sample{
	{15 * time.Minute, [3]string{"Gate Malfunction", "Gate did not open immediately after train passed", "pending"}},
	{45 * time.Minute, [3]string{"Signal Issue", "Warning lights not working properly during last closure", "pending"}},
	{3 * time.Hour, [3]string{"Barrier Problem", "Barrier arm moving slower than usual", "in_progress"}},
	{6 * time.Hour, [3]string{"Noise Complaint", "Excessive noise from warning bells at night", "in_progress"}},
	{24 * time.Hour, [3]string{"Track Obstruction", "Debris on tracks near crossing", "resolved"}},
	{48 * time.Hour, [3]string{"Gate Malfunction", "Gate stuck in closed position for extended period", "resolved"}},
	{72 * time.Hour, [3]string{"Signal Issue", "Red warning light not functioning", "resolved"}},
}

type alertSample struct {
	ago      time.Duration
	title    string
	message  string
	priority model.Priority
	read     bool
}

var sampleAlerts = []alertSample{
	{2 * time.Minute, "Train Approaching", "Express service approaching from the north at 80 km/h", model.PriorityCritical, false},
	{20 * time.Minute, "Sensor Calibration", "Track sensor B reported drift above threshold", model.PriorityHigh, false},
	{90 * time.Minute, "Scheduled Maintenance", "Barrier motor inspection planned for tonight", model.PriorityMedium, false},
	{26 * time.Hour, "Power Restored", "Backup power no longer in use at the crossing cabinet", model.PriorityLow, true},
	{10 * 24 * time.Hour, "Firmware Updated", "Gate controller firmware updated to the latest release", model.PriorityLow, true},
}

var sampleIncidents = []model.Incident{
	{Title: "Gate Stuck Closed", Description: "Barrier remained down for 12 minutes after the train cleared", Severity: "high", Location: "Main Street Crossing", Status: "investigating"},
	{Title: "Sensor Offline", Description: "Approach sensor A stopped reporting for 3 minutes", Severity: "medium", Location: "North Approach", Status: "resolved"},
	{Title: "Vehicle Near Miss", Description: "Car entered the crossing while the warning lights were active", Severity: "critical", Location: "Main Street Crossing", Status: "open"},
}

var sampleIncidentAges = []time.Duration{40 * time.Minute, 8 * time.Hour, 3 * 24 * time.Hour}

var sampleMetrics = []struct{ name, value string }{
	{MetricTrainStatus, "45"},
	{MetricTrackCondition, "98%"},
	{MetricActiveAlertsCount, "3"},
	{MetricSafetyScore, "95"},
}

func stamp(now time.Time, ago time.Duration) string {
	return now.Add(-ago).Format(model.TimestampLayout)
}

// Populate writes every sample collection. It stops at the first failed write.
func (r *SeedRepository) Populate(ctx context.Context, now time.Time) (SeedCounts, error) {
	var counts SeedCounts

	for _, s := range sampleGateEvents {
		ev := model.GateEvent{Event: s.fields[0], Status: s.fields[1], Timestamp: stamp(now, s.ago)}
		if _, err := r.alerts.PushGateEvent(ctx, ev); err != nil {
			return counts, fmt.Errorf("seed gate events: %w", err)
		}
		counts.GateEvents++
	}
	log.Printf("seed: %d gate events", counts.GateEvents)

	for _, s := range sampleComplaints {
		c := model.Complaint{
			Type:      s.fields[0],
			Details:   s.fields[1],
			Status:    model.ComplaintStatus(s.fields[2]),
			Timestamp: stamp(now, s.ago),
		}
		if _, err := r.complaints.Create(ctx, c); err != nil {
			return counts, fmt.Errorf("seed complaints: %w", err)
		}
		counts.Complaints++
	}
	log.Printf("seed: %d complaints", counts.Complaints)

	for _, s := range sampleAlerts {
		a := model.Alert{
			Title:     s.title,
			Message:   s.message,
			Timestamp: stamp(now, s.ago),
			Priority:  s.priority,
			Type:      "General",
			IsRead:    s.read,
		}
		if _, err := r.alerts.PushAlert(ctx, a); err != nil {
			return counts, fmt.Errorf("seed alerts: %w", err)
		}
		counts.Alerts++
	}

	for i, in := range sampleIncidents {
		in.Timestamp = stamp(now, sampleIncidentAges[i])
		if _, err := r.incidents.PushIncident(ctx, in); err != nil {
			return counts, fmt.Errorf("seed incidents: %w", err)
		}
		counts.Incidents++
	}

	for _, m := range sampleMetrics {
		if err := r.metrics.Set(ctx, m.name, m.value); err != nil {
			return counts, fmt.Errorf("seed safety metrics: %w", err)
		}
		counts.Metrics++
	}
	return counts, nil
}

// Clear removes gate events and complaints, the two collections the alert feed synthesizes from.
func (r *SeedRepository) Clear(ctx context.Context) error {
	if err := r.alerts.ClearGateEvents(ctx); err != nil {
		return err
	}
	if err := r.complaints.Clear(ctx); err != nil {
		return err
	}
	log.Printf("seed: cleared gate events and complaints")
	return nil
}
