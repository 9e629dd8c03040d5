// Package store holds the process-wide telemetry state: the latest
// vitals snapshot and the fall-alert history.
package store

import (
	"log"
	"sync"

	"github.com/savegress/vitalink/pkg/models"
)

// maxVisibleFalls caps how many alerts external queries see. The full
// sequence is retained for audit.
const maxVisibleFalls = 10

// Telemetry is the shared store written by the gateway link manager
// and read by the API surface and the query dispatcher.
type Telemetry struct {
	mu     sync.RWMutex
	vitals models.VitalsSnapshot
	falls  []models.FallAlert
	audit  *AuditLog
}

// NewTelemetry creates a telemetry store seeded with the zero-sentinel
// snapshot so readers before first gateway contact get a well-formed
// object.
func NewTelemetry() *Telemetry {
	return &Telemetry{
		vitals: models.ZeroVitals(),
		falls:  make([]models.FallAlert, 0),
	}
}

// SetAudit attaches a durable audit log; appends write through to it
func (t *Telemetry) SetAudit(a *AuditLog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audit = a
}

// Vitals returns the current snapshot
func (t *Telemetry) Vitals() models.VitalsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vitals
}

// ReplaceVitals atomically replaces the current snapshot. Last write
// wins by arrival order; payload timestamps are not compared.
func (t *Telemetry) ReplaceVitals(v models.VitalsSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vitals = v
}

// AppendFall appends a fall alert to the history
func (t *Telemetry) AppendFall(a models.FallAlert) {
	t.mu.Lock()
	t.falls = append(t.falls, a)
	audit := t.audit
	t.mu.Unlock()

	if audit != nil {
		if err := audit.RecordFall(a); err != nil {
			log.Printf("Failed to persist fall alert to audit log: %v", err)
		}
	}
}

// FallCount returns the total number of alerts received
func (t *Telemetry) FallCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.falls)
}

// RecentFalls returns the chronologically last alerts, newest-last,
// capped at maxVisibleFalls.
func (t *Telemetry) RecentFalls() []models.FallAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	start := 0
	if len(t.falls) > maxVisibleFalls {
		start = len(t.falls) - maxVisibleFalls
	}

	out := make([]models.FallAlert, len(t.falls)-start)
	copy(out, t.falls[start:])
	return out
}
