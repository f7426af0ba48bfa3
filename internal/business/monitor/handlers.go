package monitor

import (
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/alerts"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// applyStatus reconciles the current record and drives the countdown and trigger.
// The countdown only runs while the status reads as approaching.
// Countdown calls happen without m.mu held: ticks take m.mu under the countdown lock.
func (m *Monitor) applyStatus(s feed.Snapshot) {
	fields := s.Fields()
	if !s.Exists || fields == nil {
		m.statusFallback()
		return
	}
	status, restart := m.reconciler.Apply(crossing.ParseRawStatus(fields))
	m.deps.Metrics.Reconciled()

	eta := util.ParseFixed(status.ETA)
	switch {
	case !crossing.IsApproaching(status.TrainStatus):
		m.countdown.Stop()
		m.setCountdown(0)
	case restart:
		m.countdown.Restart(eta)
		m.setCountdown(eta)
	}

	m.mu.Lock()
	m.view.Status = status
	m.mu.Unlock()
	m.publish(KindStatus, status)
	m.trigger.Observe(status.TrainStatus)
}

// statusFallback shows the loading state and stops the countdown.
func (m *Monitor) statusFallback() {
	m.reconciler.ResetETA()
	m.countdown.Stop()
	m.setCountdown(0)
	status := crossing.LoadingStatus()
	m.mu.Lock()
	m.view.Status = status
	m.mu.Unlock()
	m.publish(KindStatus, status)
	m.trigger.Observe(status.TrainStatus)
}

func (m *Monitor) onTick(remaining float64) {
	m.deps.Metrics.Countdown(remaining)
	m.setCountdown(remaining)
}

func (m *Monitor) setCountdown(remaining float64) {
	cv := CountdownView{Remaining: remaining, Progress: m.progress.Update(remaining)}
	m.mu.Lock()
	m.view.Countdown = cv
	m.mu.Unlock()
	m.publish(KindCountdown, cv)
}

func (m *Monitor) onApproach(n model.ApproachNotification) {
	m.deps.Metrics.ApproachNotified()
	m.mu.Lock()
	m.view.LastNotification = &n
	m.mu.Unlock()
	m.publish(KindApproach, n)
}

// applyFlag mirrors the controller's approach flag. Only a false to true edge reaches
// the trigger, and not while the shown status has already cleared the crossing, so
// re-deliveries of a raised flag never open a second episode.
func (m *Monitor) applyFlag(s feed.Snapshot) {
	approaching := repository.FlagFromSnapshot(s)
	m.mu.Lock()
	raised := approaching && !m.view.Approaching
	cleared := crossing.IsCleared(m.view.Status.TrainStatus)
	m.mu.Unlock()

	m.setFlag(approaching)
	if !raised || cleared {
		return
	}
	if text, ok := m.deps.Labels.Event(crossing.EventTrainDetected); ok {
		m.trigger.Observe(text)
	}
}

func (m *Monitor) setFlag(approaching bool) {
	m.mu.Lock()
	m.view.Approaching = approaching
	m.mu.Unlock()
	m.publish(KindApproachFlag, approaching)
}

func (m *Monitor) applyHistory(s feed.Snapshot) {
	m.setHistory(m.projector.Project(repository.HistoryFromSnapshot(s), m.deps.History.Limit()))
}

func (m *Monitor) setHistory(entries []model.EventEntry) {
	m.mu.Lock()
	m.view.History = entries
	m.mu.Unlock()
	m.publish(KindHistory, entries)
}

func (m *Monitor) onAlerts(combined []model.Alert) {
	m.deps.Metrics.AlertsCombined(len(combined))
	m.mu.Lock()
	m.view.Alerts = combined
	m.mu.Unlock()
	m.publish(KindAlerts, alerts.Views(combined, m.deps.Now(), m.deps.Location))
}

func (m *Monitor) applyIncidents(s feed.Snapshot) {
	m.setIncidents(repository.IncidentsFromSnapshot(s))
}

func (m *Monitor) setIncidents(in []model.Incident) {
	m.mu.Lock()
	m.view.Incidents = in
	m.mu.Unlock()
	m.publish(KindIncidents, in)
}

func (m *Monitor) applyMetrics(s feed.Snapshot) {
	m.setMetrics(repository.MetricsFromSnapshot(s))
}

func (m *Monitor) setMetrics(sm model.SafetyMetrics) {
	m.mu.Lock()
	m.view.SafetyMetrics = sm
	m.mu.Unlock()
	m.publish(KindSafetyMetrics, sm)
}
