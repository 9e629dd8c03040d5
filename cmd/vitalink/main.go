package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/vitalink/internal/api"
	"github.com/savegress/vitalink/internal/assistant"
	"github.com/savegress/vitalink/internal/config"
	"github.com/savegress/vitalink/internal/dispatch"
	"github.com/savegress/vitalink/internal/gateway"
	"github.com/savegress/vitalink/internal/plot"
	"github.com/savegress/vitalink/internal/sensorlog"
	"github.com/savegress/vitalink/internal/store"
	"github.com/savegress/vitalink/internal/ws"
)

func main() {
	// Load configuration
	var cfg *config.Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.LoadFromEnv()
	}

	log.Printf("Starting VitaLink - Patient Telemetry Relay")
	log.Printf("Environment: %s", cfg.Server.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry store, optionally backed by a durable alert audit log
	telemetryStore := store.NewTelemetry()
	if cfg.Audit.Enabled {
		audit, err := store.NewAuditLog(cfg.Audit.DBPath)
		if err != nil {
			log.Fatalf("Failed to open audit log: %v", err)
		}
		defer audit.Close()
		telemetryStore.SetAudit(audit)
		log.Println("Fall-alert audit log enabled")
	}

	// Sensor ingest log
	sensorLog, err := sensorlog.Open(cfg.Sensors.CSVPath)
	if err != nil {
		log.Fatalf("Failed to open sensor log: %v", err)
	}
	log.Printf("Sensor log at %s", sensorLog.Path())

	// Dashboard fan-out hub
	hub := ws.NewHub()
	go hub.Run()

	// Gateway link
	link := gateway.NewLink(&cfg.Gateway, &gateway.WebSocketDialer{URL: cfg.Gateway.URL}, telemetryStore, hub)
	go link.Connect(ctx)
	go link.Run(ctx)

	// Query dispatching
	completer := assistant.NewClient(&cfg.Assistant)
	classifier := assistant.NewClassifier(completer)
	vitalsClient := gateway.NewRESTClient(cfg.Gateway.URL, cfg.Gateway.VitalsTimeout)
	renderer, err := plot.NewRenderer(cfg.Plots.Dir)
	if err != nil {
		log.Fatalf("Failed to create plot renderer: %v", err)
	}
	dispatcher := dispatch.NewDispatcher(completer, classifier, vitalsClient, sensorLog, renderer)

	// Create API server
	server := api.NewServer(telemetryStore, link, sensorLog, dispatcher, hub, cfg.Gateway.URL, cfg.Plots.Dir)

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	hub.Stop()

	log.Println("VitaLink stopped")
}
