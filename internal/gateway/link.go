// Package gateway maintains the persistent link to the remote
// telemetry gateway and bridges its events into the telemetry store
// and out to dashboard subscribers.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/savegress/vitalink/internal/config"
	"github.com/savegress/vitalink/internal/store"
	"github.com/savegress/vitalink/pkg/models"
)

// State is the gateway link connection state
type State int

// Link connection states
const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Subscriber receives gateway events fanned out by the link manager
type Subscriber interface {
	BroadcastVitals(models.VitalsSnapshot)
	BroadcastFallAlert(models.FallAlert)
	BroadcastGatewayStatus(connected bool)
}

// Link owns the one outbound connection to the gateway. Connect drives
// the handshake with a bounded retry budget; Run is the supervisory
// loop that re-triggers Connect whenever the link is down.
type Link struct {
	cfg    *config.GatewayConfig
	dialer Dialer
	store  *store.Telemetry
	subs   Subscriber

	mu    sync.Mutex
	state State
	conn  Conn
}

// NewLink creates a link manager in the Disconnected state
func NewLink(cfg *config.GatewayConfig, dialer Dialer, st *store.Telemetry, subs Subscriber) *Link {
	return &Link{
		cfg:    cfg,
		dialer: dialer,
		store:  st,
		subs:   subs,
		state:  Disconnected,
	}
}

// State returns the current connection state
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connect attempts the handshake up to the retry budget, with a fixed
// backoff between attempts. Failures are logged and counted, never
// propagated: a false return means the service keeps running degraded
// until the supervisory loop recovers the link.
func (l *Link) Connect(ctx context.Context) bool {
	l.mu.Lock()
	if l.state != Disconnected {
		already := l.state == Connected
		l.mu.Unlock()
		return already
	}
	l.state = Connecting
	l.mu.Unlock()

	for attempt := 1; attempt <= l.cfg.RetryAttempts; attempt++ {
		log.Printf("Attempting to connect to gateway (%d/%d)...", attempt, l.cfg.RetryAttempts)

		dialCtx, cancel := context.WithTimeout(ctx, l.cfg.HandshakeTimeout)
		conn, err := l.dialer.Dial(dialCtx)
		cancel()

		if err == nil {
			l.mu.Lock()
			l.state = Connected
			l.conn = conn
			l.mu.Unlock()

			log.Printf("Connected to gateway (%s)", l.cfg.URL)
			l.subs.BroadcastGatewayStatus(true)

			go l.readLoop(ctx, conn)
			return true
		}

		log.Printf("Gateway connection failed: %v", err)

		select {
		case <-time.After(l.cfg.RetryBackoff):
		case <-ctx.Done():
			l.setDisconnected(false)
			return false
		}
	}

	log.Printf("Could not connect to gateway, continuing without it")
	l.setDisconnected(false)
	return false
}

// Run is the supervisory loop. Every reconnect interval it checks the
// link and re-enters Connect if the state is Disconnected. It runs for
// the lifetime of the process; only context cancellation stops it.
func (l *Link) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.closeConn()
			return
		case <-ticker.C:
			if l.State() == Disconnected {
				log.Printf("Gateway reconnection attempt...")
				l.Connect(ctx)
			}
		}
	}
}

// readLoop consumes stream events until the transport reports a
// disconnect, then drops the link back to Disconnected.
func (l *Link) readLoop(ctx context.Context, conn Conn) {
	defer conn.Close()

	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Disconnected from gateway: %v", err)
			}
			l.setDisconnected(true)
			return
		}
		l.handleEvent(ev)
	}
}

func (l *Link) handleEvent(ev models.GatewayEvent) {
	switch ev.Event {
	case models.EventVitalsUpdate:
		var v models.VitalsSnapshot
		if err := json.Unmarshal(ev.Data, &v); err != nil {
			log.Printf("Malformed vitals event: %v", err)
			return
		}
		l.store.ReplaceVitals(v)
		l.subs.BroadcastVitals(v)

	case models.EventFallAlert:
		var a models.FallAlert
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			log.Printf("Malformed fall alert: %v", err)
			return
		}
		a.Raw = ev.Data
		l.store.AppendFall(a)
		l.subs.BroadcastFallAlert(a)

	default:
		log.Printf("Ignoring unknown gateway event %q", ev.Event)
	}
}

// setDisconnected moves the link to Disconnected. notify controls the
// status broadcast: a drop from Connected is announced, an exhausted
// connect budget that never reached Connected is not.
func (l *Link) setDisconnected(notify bool) {
	l.mu.Lock()
	wasConnected := l.state == Connected
	l.state = Disconnected
	l.conn = nil
	l.mu.Unlock()

	if notify && wasConnected {
		l.subs.BroadcastGatewayStatus(false)
	}
}

func (l *Link) closeConn() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
