/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the subsidy allocation server.
  Handles configuration, dependency injection, the report scheduler and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load YAML config, apply env and flag overrides, validate
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the scheduled breach and overdue scan
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional, see config.example.yaml)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides database.path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the report scheduler, waiting for a running scan
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=./config.yaml
  ./server -db=":memory:" -port=3000

ENVIRONMENT:
  SUBSIDY_PORT, SUBSIDY_DB_PATH, SUBSIDY_THRESHOLD_DAYS,
  SUBSIDY_DAILY_RATE, SUBSIDY_REPORT_CRON

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Scheduled reports
  - config/config.go: Configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/subsidy-engine/api"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, cfg)

	scheduler := api.NewReportScheduler(handler.Reporter, cfg.Report.Cron, cfg.Report.Checks)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start report scheduler: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api, metrics at /metrics", cfg.Server.Port)
		log.Printf("Threshold %d days, privileged category %s, db %s",
			cfg.Allocation.ThresholdDays, cfg.Allocation.PrivilegedCategory, cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
