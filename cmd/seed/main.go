package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"loom/internal/config"
	"loom/internal/seed"
	"loom/internal/service/graph"
	"loom/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	fixturePath := flag.String("fixture", "", "Path to a YAML fixture (default: embedded demo)")
	reset := flag.Bool("reset", false, "Clear all persisted state before seeding (fresh start)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *reset {
		log.Fatalf("BLOCKED: cannot run --reset in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Seeding demo workspace (environment: %s, db: %s)", cfg.Environment, cfg.DBPath)

	backend, err := storage.NewSQLiteBackend(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open storage backend: %v", err)
	}
	defer backend.Close()

	if *reset {
		log.Println("Clearing persisted state...")
		for _, key := range []string{graph.GraphKey, graph.WorkspacesKey} {
			if err := backend.Delete(key); err != nil {
				log.Fatalf("Failed to clear %s: %v", key, err)
			}
		}
		log.Println("State cleared")
	}

	store := graph.NewStore(backend, nil, logger)
	info := store.Load()
	if info.CorruptionError != nil {
		log.Printf("warning: persisted state was corrupt, seeding from defaults: %v", info.CorruptionError)
	}

	fixture, err := seed.Load(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	if err := seed.NewSeeder(store, logger).Apply(context.Background(), fixture); err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	store.Flush()
	log.Println("Seed complete")
}
