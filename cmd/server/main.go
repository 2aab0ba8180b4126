// Package main is the entry point for the meeting scheduler server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/agenda"
	"github.com/meeting-scheduler/backend/internal/api"
	"github.com/meeting-scheduler/backend/internal/calendarsync"
	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/meeting"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	// Health check mode for Docker HEALTHCHECK
	if cfg.HealthCheck {
		if err := runHealthCheck(cfg.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting meeting scheduler (version: %s)...", version)
	if !cfg.GoogleConfigured() {
		log.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, expired calendar tokens cannot be refreshed")
	}

	// Initialize database
	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	meetingRepo := storage.NewMeetingRepository(db)
	userRepo := storage.NewUserRepository(db)
	taskRepo := storage.NewTaskRepository(db)
	contactRepo := storage.NewContactRepository(db)

	// Calendar sync pipeline: observer -> queue -> worker -> dispatcher -> client
	logger := log.StandardLogger()
	queue := calendarsync.NewQueue(taskRepo, cfg.Queue.Name)
	observer := calendarsync.NewObserver(queue, logger)
	client := calendarsync.NewGoogleClient(cfg, meetingRepo, userRepo, calendarsync.WithLogger(logger))
	dispatcher := calendarsync.NewDispatcher(client, meetingRepo, userRepo, websocket.NewEventBroadcaster(hub), logger)
	worker := calendarsync.NewWorker(taskRepo, cfg.Queue.Name, dispatcher, cfg.Queue.Workers, cfg.Queue.PollInterval, logger)
	queue.OnEnqueue(worker.Notify)

	scheduler := calendarsync.NewScheduler(taskRepo, worker, cfg.Queue.StaleAfter, cfg.Queue.RetainDone)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start sync queue scheduler: %v", err)
	}

	// No worker has started yet, so every running task belongs to a previous process.
	scheduler.ReclaimRunning(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			log.Errorf("Sync worker error: %v", err)
		}
	}()

	router := api.NewRouter(api.Services{
		Config:      cfg,
		DB:          db,
		Hub:         hub,
		Meetings:    meeting.NewService(meetingRepo, userRepo, contactRepo, observer),
		MeetingRepo: meetingRepo,
		Users:       userRepo,
		Contacts:    contactRepo,
		Tasks:       taskRepo,
		Agenda:      agenda.New(meetingRepo, cfg.Timezone),
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	scheduler.Stop()
	wg.Wait()

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
