package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm/logger"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/handlers"
	"github.com/fleetwatch/fleetwatch/internal/jobs"
	"github.com/fleetwatch/fleetwatch/internal/middleware"
	"github.com/fleetwatch/fleetwatch/internal/notify"
	"github.com/fleetwatch/fleetwatch/internal/realtime"
	"github.com/fleetwatch/fleetwatch/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Fleetwatch telemetry service...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/login",
			"/api/telemetry/*",
			"/ws/*",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Device API key authentication for the ingest and realtime endpoints
	deviceAuth := middleware.NewAuthMiddleware(&middleware.AuthConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/*",
			"/api/metrics*",
			"/api/rules*",
			"/api/alerts*",
			"/api/devices*",
			"/api/stats",
		},
	})
	deviceAuth.SetAPIKeys(cfg.DeviceAPIKeys)

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	db := database.GetDB()

	// Connect to the NATS event bus (optional)
	var publisher events.Publisher
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsPublisher, conn, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS at %s: %v", cfg.NATSURL, err)
		}
		publisher = natsPublisher
		natsConn = conn
		defer natsPublisher.Close()
		log.Printf("Connected to NATS at %s", cfg.NATSURL)
	} else {
		log.Printf("NATS_URL not set, event publishing disabled")
	}

	notifier := events.NewNotifier(publisher)

	// Slack notification dispatch
	dispatcher := notify.NewDispatcher(cfg.SlackWebhooks)
	if len(cfg.SlackWebhooks) > 0 {
		log.Printf("Slack notifications enabled for %d channels", len(cfg.SlackWebhooks))
	} else {
		log.Printf("Slack notifications disabled (SLACK_WEBHOOKS not set)")
	}

	// Initialize services
	metricService := services.NewMetricService(db, notifier)
	ruleService := services.NewRuleService(db, notifier)
	alertService := services.NewAlertService(db, notifier)
	evaluator := services.NewAlertEvaluator(ruleService, alertService, notifier, dispatcher)
	fanout := realtime.NewFanout()
	ingestionService := services.NewIngestionService(db, metricService, evaluator, fanout, notifier)
	aggregationService := services.NewAggregationService(db, cfg.MaxAggregationRows)
	queryService := services.NewQueryService(db, aggregationService)
	log.Printf("Telemetry services initialized")

	// Consume device lifecycle events from the bus
	var consumer *events.Consumer
	if natsConn != nil {
		consumer = events.NewConsumer(ruleService)
		if err := consumer.Subscribe(natsConn); err != nil {
			log.Printf("Warning: Failed to subscribe to device lifecycle events: %v", err)
		} else {
			log.Printf("Subscribed to device lifecycle events")
		}
	}

	// Seed alert rules from YAML if configured
	if cfg.RuleSeedPath != "" {
		seedRules(cfg.RuleSeedPath, ruleService)
	}

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(ingestionService, queryService, metricService, ruleService, alertService, fanout)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)
	realtimeHandler := handlers.NewRealtimeWSHandler(fanout)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	realtimeHandler.SetupRoutes(mux)
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS first, then request IDs, then device keys, then JWT
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := corsMiddleware.Wrap(
		middleware.RequestIDMiddleware(
			deviceAuth.Wrap(
				jwtAuthMiddleware.Wrap(mux))))

	// Start background jobs
	stop := make(chan struct{})
	autoResolveMonitor := jobs.NewAutoResolveMonitor(alertService)
	go autoResolveMonitor.Start(time.Duration(cfg.AutoResolveIntervalSec)*time.Second, stop)
	retentionSweeper := jobs.NewRetentionSweeper(db)
	go retentionSweeper.Start(time.Duration(cfg.RetentionIntervalSec)*time.Second, stop)
	log.Printf("Background jobs started (auto-resolve every %ds, retention every %ds)",
		cfg.AutoResolveIntervalSec, cfg.RetentionIntervalSec)

	// Start HTTP server in goroutine
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Fleetwatch is running! Press Ctrl+C to exit.")
	log.Printf("Ingest endpoint: http://localhost:%d/api/telemetry/{device_id}", cfg.HTTPPort)
	log.Printf("Realtime endpoint: ws://localhost:%d/ws/telemetry", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stop)
	if consumer != nil {
		consumer.Unsubscribe()
	}
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}

// seedRules loads alert rules from the configured YAML file. Existing rules
// (matched by name) are left untouched.
func seedRules(path string, rules *services.RuleService) {
	seeds, err := config.LoadSeedRules(path)
	if err != nil {
		log.Printf("Warning: Failed to load rule seed file: %v", err)
		return
	}

	created := 0
	for _, seed := range seeds {
		rule := seed.ToAlertRule()
		if _, err := rules.EnsureRule(rule); err != nil {
			log.Printf("Warning: Failed to seed rule %s: %v", seed.Name, err)
			continue
		}
		created++
	}
	if created > 0 {
		log.Printf("Seeded %d alert rules from %s", created, path)
	}
}
