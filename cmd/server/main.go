package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridebot/internal/app"
	"ridebot/internal/config"
	"ridebot/internal/handler"
	"ridebot/internal/ident"
	internalRedis "ridebot/internal/redis"
	"ridebot/internal/repository/postgres"
	"ridebot/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	// Initialize database. Fail fast: running without the store would
	// answer every message with the same error indefinitely.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, scheduler := wire(db, redisClient, nrApp, cfg)

	// Start the ride update scheduler. Owned here: started after the
	// store is up, stopped before the process exits.
	scheduler.Start()
	log.Printf("Ride update scheduler started (interval %s)", cfg.Scheduler.Interval)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	scheduler.Stop()
	log.Println("Scheduler stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wire wires all dependencies and returns the HTTP server and the ride
// update scheduler.
func wire(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.Scheduler) {
	// Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	dedupStore := internalRedis.NewDedupStore(redisClient)

	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	rideRepo := postgres.NewRideRepository(db)

	// Services.
	ids := ident.New()
	lifecycle := service.NewLifecycle(service.NewRandomAssignment())
	conversation := service.NewConversationService(db, userRepo, rideRepo, cacheStore, lifecycle, ids)
	notifier := service.NewLogNotifier()

	var sweepLock internalRedis.LockStoreInterface
	if cfg.Scheduler.LockEnabled {
		sweepLock = lockStore
	}
	scheduler := service.NewScheduler(cfg.Scheduler.Interval, rideRepo, userRepo, lifecycle, notifier, sweepLock, nrApp)

	// Handlers.
	webhookHandler := handler.NewWebhookHandler(conversation)
	rideHandler := handler.NewRideHandler(rideRepo)

	// Router.
	router := app.NewRouter(app.RouterDeps{
		WebhookHandler: webhookHandler,
		RideHandler:    rideHandler,
		DedupStore:     dedupStore,
		NewRelicApp:    nrApp,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return httpServer, scheduler
}
