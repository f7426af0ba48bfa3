package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/complaint"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/monitor"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/backend"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/emailjs"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	apirouter "github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/http"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/metrics"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/notify"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/ws"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	gin.SetMode(cfg.GinMode)

	f, closeFeed, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("feed: %v", err)
	}
	defer closeFeed()

	paths := backend.Paths(cfg)
	statusRepo := repository.NewStatusRepository(f, paths)
	historyRepo := repository.NewHistoryRepository(f, paths)
	alertRepo := repository.NewAlertRepository(f, paths)
	complaintRepo := repository.NewComplaintRepository(f, paths)
	notificationRepo := repository.NewNotificationRepository(f, paths)
	incidentRepo := repository.NewIncidentRepository(f, paths)
	safetyRepo := repository.NewSafetyMetricsRepository(f, paths)

	if _, ok := f.(*feed.Memory); ok && cfg.SeedSampleData {
		seeder := repository.NewSeedRepository(alertRepo, complaintRepo, incidentRepo, safetyRepo)
		counts, err := seeder.Populate(ctx, time.Now().In(cfg.Location()))
		if err != nil {
			log.Fatalf("seed sample data: %v", err)
		}
		log.Printf("seeded sample data: %+v", counts)
	}

	labels, err := crossing.LoadLabels(cfg.LabelsFile)
	if err != nil {
		log.Fatalf("labels: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub(ws.WithMetrics(m))
	go hub.Run(ctx)

	mon, err := monitor.New(monitor.Deps{
		Status:            statusRepo,
		History:           historyRepo,
		Alerts:            alertRepo,
		Incidents:         incidentRepo,
		SafetyMetrics:     safetyRepo,
		Labels:            labels,
		Location:          cfg.Location(),
		CountdownInterval: cfg.CountdownInterval,
		Publisher:         hub,
		Metrics:           m,
	})
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}
	if err := mon.Start(ctx); err != nil {
		log.Fatalf("monitor start: %v", err)
	}

	opts := []complaint.Option{
		complaint.WithNotifications(notificationRepo),
		complaint.WithObserver(m),
		complaint.WithMaintainer(cfg.MaintainerEmail),
		complaint.WithLocation(cfg.Location()),
	}
	if d := dispatchers(cfg); d.Len() > 0 {
		opts = append(opts, complaint.WithDispatcher(d))
	}
	complaints := complaint.NewService(complaintRepo, opts...)

	c := cron.New()
	if _, err := c.AddFunc(cfg.RepublishSchedule, mon.Republish); err != nil {
		log.Fatalf("cron schedule %q: %v", cfg.RepublishSchedule, err)
	}
	c.Start()

	router := apirouter.NewRouter(apirouter.Deps{
		Dashboard:      mon,
		Complaints:     complaints,
		Hub:            hub,
		Gatherer:       prometheus.DefaultGatherer,
		StopID:         cfg.StopID,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on :%s (feed backend %s)", cfg.Port, cfg.FeedBackend)

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	<-c.Stop().Done()
	mon.Close()
	complaints.Wait()
	log.Println("server exited")
}

// dispatchers builds the maintainer relays that are configured.
func dispatchers(cfg config.Config) *notify.Multi {
	var out []notify.Dispatcher
	if cfg.EmailJSEnabled() {
		out = append(out, emailjs.New(nil, emailjs.Config{
			ServiceID:   cfg.EmailJSServiceID,
			TemplateID:  cfg.EmailJSTemplateID,
			UserID:      cfg.EmailJSUserID,
			AccessToken: cfg.EmailJSAccessToken,
			Endpoint:    cfg.EmailJSEndpoint,
			Mock:        cfg.EmailJSMock,
			MaxRetries:  2,
		}))
	}
	if cfg.MaintainerWebhookURL != "" {
		ch, err := notify.NewWebhookChannel(cfg.MaintainerWebhookURL, notify.WithSigningSecret(cfg.MaintainerWebhookSecret))
		if err != nil {
			log.Printf("maintainer webhook disabled: %v", err)
		} else {
			out = append(out, notify.NewChannelDispatcher(ch, cfg.MaintainerEmail))
		}
	}
	return notify.NewMulti(out...)
}
