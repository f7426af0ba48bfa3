package alerts

import (
	"strings"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// Source names of the combined feed, in registration order.
const (
	SourceAlerts     = "alerts"
	SourceGateEvents = "gate_events"
	SourceComplaints = "complaints"
)

const (
	TypeGateEvent = "Gate Event"
	TypeComplaint = "Complaint"
	TypeGeneral   = "General"
)

// FromAlerts normalizes entries of the alerts collection.
func FromAlerts(in []model.Alert) []model.Alert {
	out := make([]model.Alert, 0, len(in))
	for _, a := range in {
		a.Source = SourceAlerts
		a.Priority = ParsePriority(string(a.Priority))
		if strings.TrimSpace(a.Type) == "" {
			a.Type = TypeGeneral
		}
		out = append(out, a)
	}
	return out
}

// FromGateEvents synthesizes one alert per gate event. Opened is MEDIUM, closed is
// HIGH and anything else LOW; resolved events are read.
func FromGateEvents(in []model.GateEvent) []model.Alert {
	out := make([]model.Alert, 0, len(in))
	for _, ev := range in {
		code := strings.ToLower(strings.TrimSpace(ev.Event))
		a := model.Alert{
			ID:        ev.ID,
			Source:    SourceGateEvents,
			Timestamp: ev.Timestamp,
			Type:      TypeGateEvent,
			IsRead:    strings.EqualFold(strings.TrimSpace(ev.Status), "resolved"),
		}
		switch code {
		case "opened":
			a.Title, a.Priority = "Gate Opened", model.PriorityMedium
			a.Message = "The crossing gate was opened."
		case "closed":
			a.Title, a.Priority = "Gate Closed", model.PriorityHigh
			a.Message = "The crossing gate was closed for an approaching train."
		default:
			a.Title, a.Priority = "Gate "+util.HumanizeCode(code), model.PriorityLow
			a.Message = "Gate reported " + code + "."
		}
		out = append(out, a)
	}
	return out
}

// FromComplaints synthesizes one alert per complaint. Priority follows the status:
// pending is MEDIUM, in_progress is HIGH and anything else LOW.
func FromComplaints(in []model.Complaint) []model.Alert {
	out := make([]model.Alert, 0, len(in))
	for _, c := range in {
		status := model.ComplaintStatus(strings.ToLower(strings.TrimSpace(string(c.Status))))
		a := model.Alert{
			ID:        c.ID,
			Source:    SourceComplaints,
			Title:     "Complaint: " + c.Type,
			Message:   c.Details,
			Timestamp: c.Timestamp,
			Type:      TypeComplaint,
			IsRead:    status == model.ComplaintResolved,
		}
		switch status {
		case model.ComplaintPending:
			a.Priority = model.PriorityMedium
		case model.ComplaintInProgress:
			a.Priority = model.PriorityHigh
		default:
			a.Priority = model.PriorityLow
		}
		out = append(out, a)
	}
	return out
}

// ParsePriority upper-cases a priority name; blank reads as LOW.
func ParsePriority(s string) model.Priority {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return model.PriorityLow
	}
	return model.Priority(s)
}
