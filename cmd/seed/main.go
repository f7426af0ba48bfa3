package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/backend"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
)

func main() {
	clearData := flag.Bool("clear", false, "remove seeded gate events and complaints instead of writing them")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.FeedBackend == config.BackendMemory {
		log.Fatalf("FEED_BACKEND=memory keeps data in-process; set SEED_SAMPLE_DATA=true on the server instead")
	}

	f, closeFeed, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open feed: %v", err)
	}
	defer closeFeed()

	paths := backend.Paths(cfg)
	seeder := repository.NewSeedRepository(
		repository.NewAlertRepository(f, paths),
		repository.NewComplaintRepository(f, paths),
		repository.NewIncidentRepository(f, paths),
		repository.NewSafetyMetricsRepository(f, paths),
	)

	fmt.Println("========================================")
	if *clearData {
		if err := seeder.Clear(ctx); err != nil {
			log.Fatalf("Failed to clear test data: %v", err)
		}
		fmt.Println("Cleared gate events and complaints")
		fmt.Println("========================================")
		return
	}

	counts, err := seeder.Populate(ctx, time.Now().In(cfg.Location()))
	if err != nil {
		log.Fatalf("Failed to populate test data: %v", err)
	}
	fmt.Printf("Gate events:    %d\n", counts.GateEvents)
	fmt.Printf("Complaints:     %d\n", counts.Complaints)
	fmt.Printf("Alerts:         %d\n", counts.Alerts)
	fmt.Printf("Incidents:      %d\n", counts.Incidents)
	fmt.Printf("Safety metrics: %d\n", counts.Metrics)
	fmt.Println("========================================")
	fmt.Println("Test data populated successfully!")
}
