/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory-engine portal server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load portal config (catalog, elevated roles, resolution policy)
  3. Open the SQLite record store
  4. Open the ledger session (loads all collections into memory)
  5. Wire handlers and router, start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: inventory.db)
           Use ":memory:" for an in-memory database
  -config  Optional portal config JSON path

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the database, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - factory/config.go: Portal config schema
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

	"github.com/fieldstone/inventory-engine/api"
	"github.com/fieldstone/inventory-engine/factory"
	"github.com/fieldstone/inventory-engine/ledger"
	"github.com/fieldstone/inventory-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "inventory.db", "SQLite database path")
	cfgPath := flag.String("config", "", "Portal config JSON path")
	flag.Parse()

	cfg, err := factory.LoadFile(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	led, err := ledger.Open(context.Background(), store, cfg.LedgerOptions()...)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}

	handler := api.NewHandler(store, led, cfg.BuildCatalog())
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Portal API listening on http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
