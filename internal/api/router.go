// Package api exposes the VitaLink HTTP surface: telemetry reads,
// sensor ingestion, clinician chat, and the dashboard event socket.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/savegress/vitalink/internal/gateway"
	"github.com/savegress/vitalink/internal/sensorlog"
	"github.com/savegress/vitalink/internal/store"
	"github.com/savegress/vitalink/internal/ws"
	"github.com/savegress/vitalink/pkg/models"
)

// Answerer resolves a clinician question into an answer payload
type Answerer interface {
	Answer(ctx context.Context, question string) models.ChatAnswer
}

// Server represents the API server
type Server struct {
	router     chi.Router
	store      *store.Telemetry
	link       *gateway.Link
	sensorLog  *sensorlog.Log
	dispatcher Answerer
	hub        *ws.Hub
	gatewayURL string
	plotsDir   string
}

// NewServer creates a new API server
func NewServer(st *store.Telemetry, link *gateway.Link, sensorLog *sensorlog.Log, dispatcher Answerer, hub *ws.Hub, gatewayURL, plotsDir string) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		store:      st,
		link:       link,
		sensorLog:  sensorLog,
		dispatcher: dispatcher,
		hub:        hub,
		gatewayURL: gatewayURL,
		plotsDir:   plotsDir,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	s.router.Get("/health", s.healthCheck)

	// Dashboard event socket
	s.router.Get("/ws", s.serveWS)

	// Plot artifacts
	s.router.Handle("/plots/*", http.StripPrefix("/plots/", http.FileServer(http.Dir(s.plotsDir))))

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/gateway/status", s.gatewayStatus)
		r.Get("/vitals/latest", s.latestVitals)
		r.Get("/alerts/falls", s.fallAlerts)
		r.Post("/sensors/data", s.ingestSensorData)
		r.Post("/chat", s.chat)
		r.Get("/debug", s.debugData)
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}
