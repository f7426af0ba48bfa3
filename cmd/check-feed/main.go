package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/joho/godotenv"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/backend"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/repository"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	f, closeFeed, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open feed: %v", err)
	}
	defer closeFeed()

	statusRepo := repository.NewStatusRepository(f, backend.Paths(cfg))
	fields, err := statusRepo.Current(ctx)
	if err != nil {
		log.Fatalf("Failed to read status: %v", err)
	}

	fmt.Printf("Status path: %s\n\n", statusRepo.Path())

	jsonData, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	fmt.Println("Raw record:")
	fmt.Println(string(jsonData))

	// Type drift between controller firmware versions shows up here first.
	fmt.Printf("\n=== Field types ===\n")
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-16s %-10T %v\n", k, fields[k], fields[k])
	}

	labels, err := crossing.LoadLabels(cfg.LabelsFile)
	if err != nil {
		log.Fatalf("Failed to load labels: %v", err)
	}
	status := crossing.NewReconciler(labels, crossing.WithLocation(cfg.Location())).Reconcile(crossing.ParseRawStatus(fields))

	fmt.Printf("\n=== Reconciled ===\n")
	out, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(out))
}
