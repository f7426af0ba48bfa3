package alerts

import (
	"strings"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// Filter selects which part of the combined feed is shown.
type Filter string

const (
	FilterActive  Filter = "Active"
	FilterHistory Filter = "History"
	FilterAll     Filter = "All"
)

// ParseFilter maps a filter name, case-insensitively. Unknown names mean All.
func ParseFilter(name string) Filter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "active":
		return FilterActive
	case "history":
		return FilterHistory
	default:
		return FilterAll
	}
}

// Apply keeps the alerts matching f in their original order.
func (f Filter) Apply(in []model.Alert) []model.Alert {
	out := make([]model.Alert, 0, len(in))
	for _, a := range in {
		switch f {
		case FilterActive:
			if a.IsRead {
				continue
			}
		case FilterHistory:
			if !a.IsRead {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
