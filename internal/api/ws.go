package api

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/savegress/vitalink/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served cross-origin in development
		return true
	},
}

// serveWS upgrades a dashboard connection and registers it with the hub
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(s.hub, conn, uuid.New().String())
	client.Register()

	// The request context dies when this handler returns; the pumps
	// live until the client disconnects.
	go client.WritePump(context.Background())
	go client.ReadPump(context.Background())
}
