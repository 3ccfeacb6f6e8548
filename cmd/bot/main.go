package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/trendscope/trendscope-bot/internal/assets"
	"github.com/trendscope/trendscope-bot/internal/config"
	"github.com/trendscope/trendscope-bot/internal/notify"
	"github.com/trendscope/trendscope-bot/internal/publish"
	"github.com/trendscope/trendscope-bot/internal/render"
	"github.com/trendscope/trendscope-bot/internal/scheduler"
	"github.com/trendscope/trendscope-bot/internal/social"
	"github.com/trendscope/trendscope-bot/internal/sources"
	"github.com/trendscope/trendscope-bot/internal/store"
	"github.com/trendscope/trendscope-bot/internal/transform"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting TrendScope publishing bot")

	// Durable publish state
	stateStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open state store: %v", err)
	}
	defer stateStore.Close()

	rateLimiter, err := store.NewRateLimiter(stateStore, cfg.MinPublishGap)
	if err != nil {
		logrus.Fatalf("Failed to load rate limit state: %v", err)
	}
	cooldown, err := store.NewCooldownTracker(stateStore)
	if err != nil {
		logrus.Fatalf("Failed to load cooldown state: %v", err)
	}

	quietHours, err := publish.NewQuietHours(cfg.QuietHoursStart, cfg.QuietHoursEnd, cfg.TimeZone)
	if err != nil {
		logrus.Fatalf("Failed to build quiet hours policy: %v", err)
	}

	// Content sources
	var feedSources []sources.Source
	for _, feed := range cfg.Feeds {
		feedSources = append(feedSources, sources.NewRSSSource(feed, cfg.MaxItemAge))
	}

	transformer := transform.NewTransformer(
		transform.NewGeminiProvider(cfg.GeminiAPIKey),
		transform.NewGroqProvider(cfg.GroqAPIKey),
		transform.NewOpenRouterProvider(cfg.OpenRouterAPIKey),
	)

	var notifier notify.Notifier = notify.Noop{}
	if svc := notify.NewService(cfg); svc.Enabled() {
		notifier = svc
	}

	orchestrator := publish.NewOrchestrator(publish.Options{
		Sources:          feedSources,
		Dedup:            store.NewDedupStore(stateStore),
		RateLimiter:      rateLimiter,
		Cooldown:         cooldown,
		Transformer:      transformer,
		Renderer:         render.NewRenderer(cfg.OutputDir, cfg.FontPath, cfg.BrandName),
		Uploader:         assets.NewCloudinaryUploader(cfg.CloudinaryCloud, cfg.CloudinaryPreset),
		Social:           social.NewInstagramClient(cfg.InstagramUserID, cfg.InstagramAccessToken, cfg.SettleDelay),
		QuietHours:       quietHours,
		Notifier:         notifier,
		CooldownDuration: cfg.CooldownDuration,
	})

	schedulerService := scheduler.NewService(orchestrator, cfg.PublishInterval)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// HTTP surface: health, metrics, gate status and the manual trigger
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(orchestrator)).Methods("GET")
	router.HandleFunc("/status", statusHandler(orchestrator)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(orchestrator)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(orchestrator *publish.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(orchestrator.GetMetrics()))
	}
}

func statusHandler(orchestrator *publish.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(orchestrator.Status()))
	}
}

// triggerHandler schedules a cycle asynchronously and answers immediately so
// the caller is never blocked for the duration of a cycle
func triggerHandler(orchestrator *publish.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if orchestrator.IsRunning() {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"status":"already running"}`))
			return
		}

		go func() {
			err := orchestrator.RunCycle(context.Background())
			if err != nil && !errors.Is(err, publish.ErrCycleInProgress) && !errors.Is(err, publish.ErrQuietHours) {
				logrus.Errorf("Manual publish trigger failed: %v", err)
			}
		}()

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	}
}
