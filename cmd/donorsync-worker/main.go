package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prospectiq/donorsync-worker/internal/config"
	"github.com/prospectiq/donorsync-worker/internal/database"
	"github.com/prospectiq/donorsync-worker/internal/provider"
	"github.com/prospectiq/donorsync-worker/internal/provider/neon"
	"github.com/prospectiq/donorsync-worker/internal/provider/sheets"
	"github.com/prospectiq/donorsync-worker/internal/ratelimit"
	"github.com/prospectiq/donorsync-worker/internal/repository"
	"github.com/prospectiq/donorsync-worker/internal/scheduler"
	"github.com/prospectiq/donorsync-worker/internal/server"
	"github.com/prospectiq/donorsync-worker/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Initialize repositories
	jobRepo := repository.NewSyncJobRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	// Register provider adapters
	registry := provider.NewRegistry(
		neon.NewAdapter(cfg.NeonBaseURL),
		sheets.NewAdapter(),
	)

	limiter := ratelimit.New(time.Duration(cfg.RateLimitDelayMs)*time.Millisecond, nil)

	// App-level context: run loops outlive requests but not the process.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := service.NewSyncCoordinator(ctx, jobRepo, recordRepo, credentialRepo, registry, limiter, service.Options{
		StaleThreshold:       time.Duration(cfg.StaleThresholdMin) * time.Minute,
		MinSyncInterval:      time.Duration(cfg.MinSyncIntervalMin) * time.Minute,
		BatchSize:            cfg.BatchSize,
		MaxRecordsPerAccount: cfg.MaxRecordsPerAccount,
	})

	// Initialize scheduler
	sched := scheduler.New(credentialRepo, coordinator, time.Duration(cfg.PollInterval)*time.Second)

	// Initialize HTTP server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(coordinator).Handler(),
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() {
		errChan <- sched.Start(ctx)
	}()
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}

		// Give detached run loops a chance to finalize their jobs; anything
		// still stuck is recovered lazily by the next StartSync.
		done := make(chan struct{})
		go func() {
			coordinator.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded")
		}

		log.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
