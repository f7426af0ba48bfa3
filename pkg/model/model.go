package model

import "time"

// TimestampLayout is the zero-padded wall-clock format all producers write.
const TimestampLayout = "2006-01-02 15:04:05"

// RawStatusRecord mirrors the single "current" record pushed by the crossing controller.
// SpeedKmh and EtaSec stay untyped: producers send integers, floats or strings.
type RawStatusRecord struct {
	Event      string `json:"event,omitempty"`
	GateStatus string `json:"gate_status,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Sensor     string `json:"sensor,omitempty"`
	SpeedKmh   any    `json:"speed_kmh,omitempty"`
	EtaSec     any    `json:"eta_sec,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"` // epoch millis, producer clock
}

// DisplayStatus is the display-ready projection of a RawStatusRecord.
type DisplayStatus struct {
	TrainStatus string `json:"trainStatus"`
	GateStatus  string `json:"gateStatus"`
	Speed       string `json:"speed"`
	ETA         string `json:"eta"`
	LastUpdate  string `json:"lastUpdate"`
}

// HistoryRecord is one entry of the append-only gate history log.
type HistoryRecord struct {
	Key        string `json:"key,omitempty" firestore:"-"`
	Datetime   string `json:"datetime,omitempty" firestore:"datetime,omitempty"`
	Event      string `json:"event,omitempty" firestore:"event,omitempty"`
	GateStatus string `json:"gate_status,omitempty" firestore:"gate_status,omitempty"`
}

// EventEntry is a human-readable history line.
type EventEntry struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Priority ranks alerts for display.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Alert is one entry of the combined alert feed. Timestamp keeps the producer text;
// At is the parsed instant (zero when the text could not be parsed).
type Alert struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	At        time.Time `json:"-"`
	Priority  Priority  `json:"priority"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
}

// Incident is a read-only projection of the incidents collection.
type Incident struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

// SafetyMetrics mirrors the safety_metrics subtree shown on the dashboard header.
type SafetyMetrics struct {
	TrainStatus       string `json:"trainStatus"`
	TrackCondition    string `json:"trackCondition"`
	ActiveAlertsCount string `json:"activeAlertsCount"`
	SafetyScore       string `json:"safetyScore"`
}

// ComplaintStatus tracks the maintainer workflow of a complaint.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "pending"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
)

// Complaint is the record written to the complaints collection.
type Complaint struct {
	ID        string          `json:"id,omitempty" firestore:"-"`
	Type      string          `json:"type" firestore:"type"`
	Details   string          `json:"details" firestore:"details"`
	Timestamp string          `json:"timestamp" firestore:"timestamp"`
	Status    ComplaintStatus `json:"status" firestore:"status"`
	UserEmail string          `json:"userEmail" firestore:"userEmail"`
	UserPhone string          `json:"userPhone" firestore:"userPhone"`
}

// MaintainerNotification references a complaint for the maintainer inbox.
type MaintainerNotification struct {
	ComplaintID string `json:"complaintId" firestore:"complaintId"`
	Recipient   string `json:"recipient" firestore:"recipient"`
	Title       string `json:"title" firestore:"title"`
	Message     string `json:"message" firestore:"message"`
	Timestamp   string `json:"timestamp" firestore:"timestamp"`
	Read        bool   `json:"read" firestore:"read"`
}

// GateEvent is a gate open/close record in the gate_events collection.
type GateEvent struct {
	ID        string `json:"id,omitempty" firestore:"-"`
	Event     string `json:"event" firestore:"event"`
	Timestamp string `json:"timestamp" firestore:"timestamp"`
	Status    string `json:"status" firestore:"status"`
}

// ApproachNotification is emitted once per approach episode.
type ApproachNotification struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}
