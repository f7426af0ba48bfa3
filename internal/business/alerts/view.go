package alerts

import (
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// View is an alert as the dashboard renders it.
type View struct {
	model.Alert
	Relative string `json:"relative"`
	Color    string `json:"color"`
}

// PriorityColor returns the indicator color of a priority.
func PriorityColor(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "#F44336"
	case model.PriorityHigh:
		return "#FF6F00"
	case model.PriorityMedium:
		return "#FFC107"
	case model.PriorityLow:
		return "#4CAF50"
	default:
		return "#2196F3"
	}
}

// Views decorates alerts with relative labels computed against now.
func Views(in []model.Alert, now time.Time, loc *time.Location) []View {
	out := make([]View, 0, len(in))
	for _, a := range in {
		rel := a.Timestamp
		if !a.At.IsZero() {
			rel = HumanizeTime(a.At, now, loc)
		}
		out = append(out, View{Alert: a, Relative: rel, Color: PriorityColor(a.Priority)})
	}
	return out
}
