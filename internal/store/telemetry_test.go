package store

import (
	"fmt"
	"testing"

	"github.com/savegress/vitalink/pkg/models"
)

func TestNewTelemetry_ZeroSentinel(t *testing.T) {
	s := NewTelemetry()

	v := s.Vitals()
	if v.PatientID != "00001" {
		t.Errorf("expected sentinel patient id 00001, got %q", v.PatientID)
	}
	if v.RecordedAt != "Never" {
		t.Errorf("expected sentinel recorded_at Never, got %q", v.RecordedAt)
	}
	if v.HeartRate != 0 || v.SpO2 != 0 {
		t.Error("expected zeroed numeric fields")
	}
}

func TestTelemetry_ReplaceVitals_LastWriteWins(t *testing.T) {
	s := NewTelemetry()

	// Arrival order wins even when payload timestamps go backwards
	s.ReplaceVitals(models.VitalsSnapshot{PatientID: "00001", HeartRate: 70, Timestamp: 200})
	s.ReplaceVitals(models.VitalsSnapshot{PatientID: "00001", HeartRate: 85, Timestamp: 100})

	v := s.Vitals()
	if v.HeartRate != 85 {
		t.Errorf("expected latest-received snapshot to win, got heart rate %v", v.HeartRate)
	}
	if v.Timestamp != 100 {
		t.Errorf("expected timestamp 100, got %v", v.Timestamp)
	}
}

func TestTelemetry_RecentFalls_CappedAtTen(t *testing.T) {
	s := NewTelemetry()

	for i := 0; i < 25; i++ {
		s.AppendFall(models.FallAlert{
			PatientID:  "00001",
			Confidence: float64(i),
		})
	}

	if s.FallCount() != 25 {
		t.Errorf("expected full count 25, got %d", s.FallCount())
	}

	recent := s.RecentFalls()
	if len(recent) != 10 {
		t.Fatalf("expected 10 visible alerts, got %d", len(recent))
	}

	// Chronologically last 10, newest last
	for i, alert := range recent {
		want := float64(15 + i)
		if alert.Confidence != want {
			t.Errorf("alert %d: expected confidence %v, got %v", i, want, alert.Confidence)
		}
	}
}

func TestTelemetry_RecentFalls_FewerThanTen(t *testing.T) {
	s := NewTelemetry()

	s.AppendFall(models.FallAlert{Confidence: 90})
	s.AppendFall(models.FallAlert{Confidence: 95})

	recent := s.RecentFalls()
	if len(recent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(recent))
	}
	if recent[1].Confidence != 95 {
		t.Error("expected newest alert last")
	}
}

func TestTelemetry_AppendFall_WritesThroughAudit(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditLog failed: %v", err)
	}
	defer audit.Close()

	s := NewTelemetry()
	s.SetAudit(audit)

	for i := 0; i < 3; i++ {
		s.AppendFall(models.FallAlert{
			PatientID:  "00001",
			Confidence: 80,
			RecordedAt: fmt.Sprintf("2026-09-01 10:0%d:00", i),
		})
	}

	n, err := audit.CountFalls()
	if err != nil {
		t.Fatalf("CountFalls failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 persisted alerts, got %d", n)
	}
}
