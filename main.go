package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/glucolumin/glucolumin/internal/api"
	"github.com/glucolumin/glucolumin/internal/config"
	"github.com/glucolumin/glucolumin/internal/model"
	"github.com/glucolumin/glucolumin/internal/signal"
	"github.com/glucolumin/glucolumin/internal/store"
	"github.com/glucolumin/glucolumin/internal/version"
	"github.com/glucolumin/glucolumin/internal/visit"
)

const dbFile = "scan_data.db"

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", dbFile, "Path to the scan database")
	configPath    = flag.String("config", config.DefaultConfigPath, "Path to pipeline tuning config")
	modelPath     = flag.String("model", "", "Path to the coefficient artifact (overrides config)")
	migrateAction = flag.String("migrate", "", "Run a migration action (up, down, version) and exit")
	migrationsDir = flag.String("migrations", "migrations", "Path to migration files")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadPipelineConfig(*configPath)
	if err != nil {
		log.Printf("Config %s not loaded (%v), using built-in defaults", *configPath, err)
		cfg = config.EmptyPipelineConfig()
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open scan database: %v", err)
	}
	defer db.Close()

	if *migrateAction != "" {
		runMigrate(db, *migrateAction, *migrationsDir)
		return
	}

	artifactPath := cfg.GetModelPath()
	if *modelPath != "" {
		artifactPath = *modelPath
	}
	artifact, err := model.LoadArtifact(artifactPath)
	if err != nil {
		// The process keeps serving; visits fail individually with a
		// model-unavailable reason until an artifact is provided.
		log.Printf("WARNING: %v", err)
	} else {
		log.Printf("Loaded coefficient artifact %s (%s)", artifactPath, artifact.Version)
	}

	sigCfg := signal.Config{
		MinSamples:         cfg.GetMinSamples(),
		SavgolWindow:       cfg.GetSavgolWindow(),
		SavgolOrder:        cfg.GetSavgolOrder(),
		WaveletLevels:      cfg.GetWaveletLevels(),
		AutoCalibrateBelow: cfg.GetAutoCalibrateBelow(),
		AutoCalibrateScale: cfg.GetAutoCalibrateScale(),
	}

	pipeline := visit.NewPipeline(sigCfg, artifact, db)
	manager := visit.NewManager(db, pipeline, visit.ManagerOptions{
		CollectionWindow:  cfg.GetCollectionWindow(),
		ProcessingTimeout: cfg.GetProcessingTimeout(),
	})
	defer manager.Close()

	server := api.NewServer(manager, db, artifact != nil)

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	go func() {
		log.Printf("GlucoLumin backend %s (%s) listening on %s",
			version.Version, version.GitSHA, *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	ossignal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

func runMigrate(db *store.Store, action, dir string) {
	switch action {
	case "up":
		if err := db.MigrateUp(dir); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied")
	case "down":
		if err := db.MigrateDown(dir); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "version":
		version, dirty, err := db.MigrateVersion(dir)
		if err != nil {
			log.Fatalf("Migration version failed: %v", err)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	default:
		log.Fatalf("Unknown migrate action %q (want up, down, or version)", action)
	}
}
