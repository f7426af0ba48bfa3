package backend

import (
	"context"
	"testing"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
)

func TestOpenMemory(t *testing.T) {
	f, closeFn, err := Open(context.Background(), config.Config{FeedBackend: config.BackendMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if _, ok := f.(*feed.Memory); !ok {
		t.Fatalf("got %T, want *feed.Memory", f)
	}
}

func TestPathsMatchDefaults(t *testing.T) {
	d := repository.DefaultPaths()
	cfg := config.Config{
		StatusPath:        d.Status,
		HistoryPath:       d.History,
		HistoryLimit:      d.HistoryLimit,
		AlertsPath:        d.Alerts,
		GateEventsPath:    d.GateEvents,
		ComplaintsPath:    d.Complaints,
		NotificationsPath: d.Notifications,
		IncidentsPath:     d.Incidents,
		SafetyMetricsPath: d.SafetyMetrics,
		ApproachFlagPath:  d.ApproachFlag,
	}
	if got := Paths(cfg); got != d {
		t.Fatalf("Paths = %+v, want %+v", got, d)
	}
}
