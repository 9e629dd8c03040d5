package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/savegress/vitalink/internal/config"
	"github.com/savegress/vitalink/internal/store"
	"github.com/savegress/vitalink/pkg/models"
)

func newTestGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		URL:               "http://gateway.test",
		HandshakeTimeout:  100 * time.Millisecond,
		RetryAttempts:     3,
		RetryBackoff:      time.Millisecond,
		ReconnectInterval: 10 * time.Millisecond,
	}
}

type fakeConn struct {
	events chan models.GatewayEvent
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan models.GatewayEvent, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadEvent() (models.GatewayEvent, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		return models.GatewayEvent{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int
	attempts int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts++
	if d.attempts <= d.failures {
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeSubscriber struct {
	mu       sync.Mutex
	vitals   []models.VitalsSnapshot
	falls    []models.FallAlert
	statuses []bool
}

func (s *fakeSubscriber) BroadcastVitals(v models.VitalsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vitals = append(s.vitals, v)
}

func (s *fakeSubscriber) BroadcastFallAlert(a models.FallAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.falls = append(s.falls, a)
}

func (s *fakeSubscriber) BroadcastGatewayStatus(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, connected)
}

func (s *fakeSubscriber) statusLog() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.statuses...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestConnect_ExhaustsRetryBudget(t *testing.T) {
	dialer := &fakeDialer{failures: 100}
	subs := &fakeSubscriber{}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), subs)

	ok := link.Connect(context.Background())
	if ok {
		t.Fatal("expected Connect to fail")
	}
	if link.State() != Disconnected {
		t.Errorf("expected Disconnected after exhausted budget, got %v", link.State())
	}
	if dialer.attemptCount() != 3 {
		t.Errorf("expected exactly 3 handshake attempts, got %d", dialer.attemptCount())
	}
	if len(subs.statusLog()) != 0 {
		t.Errorf("expected no status broadcast, got %v", subs.statusLog())
	}
}

func TestConnect_SucceedsWithinBudget(t *testing.T) {
	dialer := &fakeDialer{failures: 2}
	subs := &fakeSubscriber{}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), subs)

	ok := link.Connect(context.Background())
	if !ok {
		t.Fatal("expected Connect to succeed on the third attempt")
	}
	if link.State() != Connected {
		t.Errorf("expected Connected, got %v", link.State())
	}
	if dialer.attemptCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", dialer.attemptCount())
	}

	statuses := subs.statusLog()
	if len(statuses) != 1 || !statuses[0] {
		t.Errorf("expected a single connected:true broadcast, got %v", statuses)
	}
}

func TestConnect_AlreadyConnectedIsNoop(t *testing.T) {
	dialer := &fakeDialer{}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), &fakeSubscriber{})

	if !link.Connect(context.Background()) {
		t.Fatal("first Connect failed")
	}
	if !link.Connect(context.Background()) {
		t.Fatal("second Connect should report success")
	}
	if dialer.attemptCount() != 1 {
		t.Errorf("expected no second handshake, got %d attempts", dialer.attemptCount())
	}
}

func TestReadLoop_VitalsEventReplacesAndFansOut(t *testing.T) {
	dialer := &fakeDialer{}
	subs := &fakeSubscriber{}
	st := store.NewTelemetry()
	link := NewLink(newTestGatewayConfig(), dialer, st, subs)

	if !link.Connect(context.Background()) {
		t.Fatal("Connect failed")
	}

	payload, _ := json.Marshal(models.VitalsSnapshot{
		PatientID: "00001",
		HeartRate: 77,
		SpO2:      98,
	})
	dialer.lastConn().events <- models.GatewayEvent{Event: models.EventVitalsUpdate, Data: payload}

	waitFor(t, func() bool { return st.Vitals().HeartRate == 77 }, "vitals replacement")

	subs.mu.Lock()
	n := len(subs.vitals)
	subs.mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 vitals broadcast, got %d", n)
	}
}

func TestReadLoop_FallAlertAppendsAndFansOut(t *testing.T) {
	dialer := &fakeDialer{}
	subs := &fakeSubscriber{}
	st := store.NewTelemetry()
	link := NewLink(newTestGatewayConfig(), dialer, st, subs)

	if !link.Connect(context.Background()) {
		t.Fatal("Connect failed")
	}

	payload, _ := json.Marshal(models.FallAlert{PatientID: "00001", Confidence: 92})
	dialer.lastConn().events <- models.GatewayEvent{Event: models.EventFallAlert, Data: payload}

	waitFor(t, func() bool { return st.FallCount() == 1 }, "fall alert append")

	// The vitals snapshot must be untouched by the alert path
	if st.Vitals().HeartRate != 0 {
		t.Error("fall alert must not overwrite vitals")
	}

	subs.mu.Lock()
	n := len(subs.falls)
	subs.mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 fall broadcast, got %d", n)
	}
}

func TestReadLoop_TransportDropReturnsToDisconnected(t *testing.T) {
	dialer := &fakeDialer{}
	subs := &fakeSubscriber{}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), subs)

	if !link.Connect(context.Background()) {
		t.Fatal("Connect failed")
	}

	dialer.lastConn().Close()

	waitFor(t, func() bool { return link.State() == Disconnected }, "disconnect")

	waitFor(t, func() bool {
		log := subs.statusLog()
		return len(log) == 2 && log[0] && !log[1]
	}, "connected:false broadcast")
}

func TestRun_ReconnectsWhenDisconnected(t *testing.T) {
	dialer := &fakeDialer{failures: 1000}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), &fakeSubscriber{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)

	waitFor(t, func() bool { return dialer.attemptCount() >= 3 }, "supervisory reconnect attempts")
}

func TestRun_SkipsTickWhileConnected(t *testing.T) {
	dialer := &fakeDialer{}
	link := NewLink(newTestGatewayConfig(), dialer, store.NewTelemetry(), &fakeSubscriber{})

	if !link.Connect(context.Background()) {
		t.Fatal("Connect failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if dialer.attemptCount() != 1 {
		t.Errorf("expected no reconnect attempts while connected, got %d", dialer.attemptCount())
	}
}
