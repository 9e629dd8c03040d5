package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/savegress/vitalink/internal/gateway"
	"github.com/savegress/vitalink/pkg/models"
)

// Health check
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vitalink",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"connected": s.link.State() == gateway.Connected,
		"url":       s.gatewayURL,
	})
}

func (s *Server) latestVitals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Vitals())
}

func (s *Server) fallAlerts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":  s.store.FallCount(),
		"alerts": s.store.RecentFalls(),
	})
}

// ingestSensorData appends one timestamped row to the sensor log.
// Malformed payloads are rejected before the log is touched.
func (s *Server) ingestSensorData(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Sensors map[string]float64 `json:"sensors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondStatus(w, http.StatusBadRequest, "error", "Invalid request body")
		return
	}
	if payload.Sensors == nil {
		respondStatus(w, http.StatusBadRequest, "error", "Missing sensors field")
		return
	}

	if err := s.sensorLog.Append(time.Now(), payload.Sensors); err != nil {
		respondStatus(w, http.StatusInternalServerError, "error", err.Error())
		return
	}

	log.Printf("Watch data saved: HR=%v, Steps=%v", payload.Sensors["heart_rate"], payload.Sensors["steps"])
	respondStatus(w, http.StatusOK, "success", "")
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer := s.dispatcher.Answer(r.Context(), payload.Message)
	respondJSON(w, http.StatusOK, answer)
}

func (s *Server) debugData(w http.ResponseWriter, r *http.Request) {
	readings, err := s.sensorLog.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var latest map[string]float64
	if len(readings) > 0 {
		latest = readings[len(readings)-1].Values
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"columns":           models.SensorChannels,
		"total_rows":        len(readings),
		"latest_row":        latest,
		"gateway_connected": s.link.State() == gateway.Connected,
		"latest_vitals":     s.store.Vitals(),
		"fall_alerts_count": s.store.FallCount(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func respondStatus(w http.ResponseWriter, status int, state, message string) {
	body := map[string]interface{}{"status": state}
	if message != "" {
		body["message"] = message
	}
	respondJSON(w, status, body)
}
