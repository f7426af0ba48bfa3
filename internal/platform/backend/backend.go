// Package backend opens the feed selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	firestoreclient "github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/firestore"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/rtdb"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
)

// Open connects to the configured backend. The returned func releases it.
func Open(ctx context.Context, cfg config.Config) (feed.Feed, func(), error) {
	switch cfg.FeedBackend {
	case config.BackendRTDB:
		client, source, err := rtdb.New(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("rtdb init: %w", err)
		}
		log.Printf("connected to Realtime Database %s using %s credentials", cfg.FirebaseDatabaseURL, source)
		return rtdb.NewFeed(client, cfg.FeedPollInterval), func() {}, nil

	case config.BackendFirestore:
		f, source, err := firestoreclient.Open(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore init: %w", err)
		}
		log.Printf("connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, source)
		return f, func() { f.Close() }, nil

	default:
		log.Printf("using in-memory feed; data is lost on exit")
		return feed.NewMemory(), func() {}, nil
	}
}

// Paths maps the configured locations onto repository paths.
func Paths(cfg config.Config) repository.Paths {
	return repository.Paths{
		Status:        cfg.StatusPath,
		History:       cfg.HistoryPath,
		HistoryLimit:  cfg.HistoryLimit,
		Alerts:        cfg.AlertsPath,
		GateEvents:    cfg.GateEventsPath,
		Complaints:    cfg.ComplaintsPath,
		Notifications: cfg.NotificationsPath,
		Incidents:     cfg.IncidentsPath,
		SafetyMetrics: cfg.SafetyMetricsPath,
		ApproachFlag:  cfg.ApproachFlagPath,
	}
}
