package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles dashboard metrics. A nil *Metrics records nothing.
type Metrics struct {
	FeedEvents       *prometheus.CounterVec
	Reconciliations  prometheus.Counter
	CombinedAlerts   prometheus.Gauge
	ApproachNotices  prometheus.Counter
	ComplaintsTotal  *prometheus.CounterVec
	SideEffectsTotal *prometheus.CounterVec
	WebsocketClients prometheus.Gauge
	CountdownSeconds prometheus.Gauge
}

// New constructs metrics and registers them with reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		FeedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossing_feed_events_total",
				Help: "Feed deliveries by watched path and result",
			},
			[]string{"path", "result"},
		),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossing_reconciliations_total",
			Help: "Total status reconciliations",
		}),
		CombinedAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossing_combined_alerts",
			Help: "Alerts in the combined feed",
		}),
		ApproachNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossing_approach_notifications_total",
			Help: "Train approaching notifications emitted",
		}),
		ComplaintsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossing_complaints_total",
				Help: "Complaint submissions by result",
			},
			[]string{"result"},
		),
		SideEffectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossing_complaint_side_effects_total",
				Help: "Complaint follow-up steps by step and result",
			},
			[]string{"step", "result"},
		),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossing_websocket_clients",
			Help: "Connected websocket clients",
		}),
		CountdownSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossing_countdown_remaining_seconds",
			Help: "Locally counted ETA to the gate",
		}),
	}
	reg.MustRegister(
		m.FeedEvents,
		m.Reconciliations,
		m.CombinedAlerts,
		m.ApproachNotices,
		m.ComplaintsTotal,
		m.SideEffectsTotal,
		m.WebsocketClients,
		m.CountdownSeconds,
	)
	return m
}

// FeedEvent counts one delivery on path.
func (m *Metrics) FeedEvent(path string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FeedEvents.WithLabelValues(path, result).Inc()
}

// Reconciled counts one reconciliation.
func (m *Metrics) Reconciled() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

// AlertsCombined sets the combined feed size.
func (m *Metrics) AlertsCombined(n int) {
	if m == nil {
		return
	}
	m.CombinedAlerts.Set(float64(n))
}

// ApproachNotified counts one approach notification.
func (m *Metrics) ApproachNotified() {
	if m == nil {
		return
	}
	m.ApproachNotices.Inc()
}

// ComplaintSubmitted counts a submission by result.
func (m *Metrics) ComplaintSubmitted(result string) {
	if m == nil {
		return
	}
	m.ComplaintsTotal.WithLabelValues(result).Inc()
}

// SideEffect counts a complaint follow-up step by result.
func (m *Metrics) SideEffect(step, result string) {
	if m == nil {
		return
	}
	m.SideEffectsTotal.WithLabelValues(step, result).Inc()
}

// ClientConnected adjusts the websocket client gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Add(float64(delta))
}

// Countdown sets the locally counted ETA.
func (m *Metrics) Countdown(remaining float64) {
	if m == nil {
		return
	}
	m.CountdownSeconds.Set(remaining)
}
