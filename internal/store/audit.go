package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/savegress/vitalink/pkg/models"
)

// AuditLog is a SQLite-backed durable record of fall alerts. The
// in-memory store stays the read path; this exists so alerts survive
// restarts for later review.
type AuditLog struct {
	db     *sql.DB
	dbPath string
}

// NewAuditLog opens (or creates) the audit database under dataPath
func NewAuditLog(dataPath string) (*AuditLog, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "fall_alerts.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &AuditLog{db: db, dbPath: dbPath}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return a, nil
}

func (a *AuditLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fall_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		confidence REAL NOT NULL,
		recorded_at TEXT,
		raw TEXT,
		received_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fall_alerts_patient ON fall_alerts(patient_id, received_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// RecordFall writes one alert through to the database
func (a *AuditLog) RecordFall(alert models.FallAlert) error {
	_, err := a.db.Exec(
		`INSERT INTO fall_alerts (patient_id, confidence, recorded_at, raw, received_at) VALUES (?, ?, ?, ?, ?)`,
		alert.PatientID, alert.Confidence, alert.RecordedAt, string(alert.Raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fall alert: %w", err)
	}
	return nil
}

// CountFalls returns the number of persisted alerts
func (a *AuditLog) CountFalls() (int, error) {
	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM fall_alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fall alerts: %w", err)
	}
	return n, nil
}

// Close closes the underlying database
func (a *AuditLog) Close() error {
	return a.db.Close()
}
