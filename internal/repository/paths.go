package repository

// Paths names the feed locations the dashboard reads and writes.
type Paths struct {
	Status        string
	History       string
	HistoryLimit  int
	Alerts        string
	GateEvents    string
	Complaints    string
	Notifications string
	Incidents     string
	SafetyMetrics string
	ApproachFlag  string
}

// DefaultPaths returns the layout used by the crossing controller.
func DefaultPaths() Paths {
	return Paths{
		Status:        "RailwayGate/current",
		History:       "RailwayGate/history",
		HistoryLimit:  20,
		Alerts:        "alerts",
		GateEvents:    "gate_events",
		Complaints:    "complaints",
		Notifications: "maintainer_notifications",
		Incidents:     "incidents",
		SafetyMetrics: "safety_metrics",
		ApproachFlag:  "train_approaching",
	}
}
