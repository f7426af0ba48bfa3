package crossing

import (
	"strings"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// DefaultHistoryLimit is how many history records the dashboard keeps.
const DefaultHistoryLimit = 20

// Projector renders history records as human-readable event lines.
type Projector struct {
	labels Labels
}

// NewProjector builds a Projector over the given label tables.
func NewProjector(labels Labels) *Projector {
	return &Projector{labels: labels}
}

// Project converts records, given oldest first, into entries newest first. Only the
// last limit records are used when limit is positive. Records without a datetime or
// a describable event are skipped.
func (p *Projector) Project(records []model.HistoryRecord, limit int) []model.EventEntry {
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]model.EventEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		desc := p.Describe(rec.Event, rec.GateStatus)
		if desc == "" || strings.TrimSpace(rec.Datetime) == "" {
			continue
		}
		out = append(out, model.EventEntry{Timestamp: rec.Datetime, Description: desc})
	}
	return out
}

// Describe renders one event. Non-gate events carrying a gate status get a
// " - Gate: <label>" suffix.
func (p *Projector) Describe(event, gate string) string {
	event, gate = strings.TrimSpace(event), strings.TrimSpace(gate)
	text, ok := p.labels.Event(event)
	if !ok {
		text = util.HumanizeCode(event)
	}
	if text == "" {
		return ""
	}
	if gate != "" && !strings.HasPrefix(event, gateEventPrefix) {
		return text + " - Gate: " + p.labels.Gate(gate)
	}
	return text
}
