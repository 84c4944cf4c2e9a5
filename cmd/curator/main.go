package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/curator"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/github"
	"github.com/reposcout/reposcout/pkg/config"
	"github.com/reposcout/reposcout/pkg/logging"
	"github.com/reposcout/reposcout/pkg/telemetry"
)

func main() {
	onlyCluster := flag.String("cluster", "", "curate a single cluster instead of the full catalog")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting RepoScout Curator")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize GitHub search client
	gh, err := github.New(&cfg.GitHub)
	if err != nil {
		logger.Fatal("Failed to create GitHub client", zap.Error(err))
	}

	// Cancel the run on interrupt so a partial pass still prunes cleanly
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Interrupt received, cancelling curation run")
		cancel()
	}()

	job := curator.NewJob(cfg, gh, database)
	if err := job.Run(ctx, *onlyCluster); err != nil {
		logger.Fatal("Curation run failed", zap.Error(err))
	}

	logger.Info("Curation run complete")
}
