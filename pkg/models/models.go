package models

import (
	"encoding/json"
	"time"
)

// BloodPressure holds a systolic/diastolic pair in mmHg
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// VitalsSnapshot is the latest physiological measurement set streamed
// from the gateway. Exactly one live instance exists; every inbound
// vitals event replaces it wholesale.
type VitalsSnapshot struct {
	PatientID       string        `json:"patient_id"`
	HeartRate       float64       `json:"heart_rate"`
	SpO2            float64       `json:"spo2"`
	BloodPressure   BloodPressure `json:"blood_pressure"`
	SkinTemperature float64       `json:"skin_temperature"`
	Timestamp       int64         `json:"timestamp"`
	RecordedAt      string        `json:"recorded_at"`
}

// ZeroVitals returns the sentinel snapshot served before the gateway
// has delivered any data.
func ZeroVitals() VitalsSnapshot {
	return VitalsSnapshot{
		PatientID:  "00001",
		RecordedAt: "Never",
	}
}

// FallAlert is a fall-detection event from the gateway
type FallAlert struct {
	PatientID  string          `json:"patient_id"`
	Confidence float64         `json:"confidence"`
	RecordedAt string          `json:"recorded_at"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// GatewayEvent kinds on the gateway event stream
const (
	EventVitalsUpdate  = "vitals_update"
	EventFallAlert     = "fall_alert"
	EventGatewayStatus = "gateway_status"
)

// GatewayEvent is the wire envelope for gateway stream events
type GatewayEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GatewayStatus reports link health to dashboard subscribers
type GatewayStatus struct {
	Connected bool `json:"connected"`
}

// SensorChannels lists every column of the sensor ingest log, in
// persisted order. time_stamp is implicit and always first.
var SensorChannels = []string{
	"heart_rate", "steps",
	"accelerometer_x", "accelerometer_y", "accelerometer_z",
	"gyroscope_x", "gyroscope_y", "gyroscope_z",
	"gravity_x", "gravity_y", "gravity_z",
	"linear_accel_x", "linear_accel_y", "linear_accel_z",
	"temperature", "pressure", "light", "proximity",
	"rotation_0", "rotation_1", "rotation_2", "rotation_3", "rotation_4",
}

// SensorReading is one row of the ingest log. Values maps channel name
// to measurement; channels absent from the push are absent from the map.
type SensorReading struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Value returns the reading for a channel and whether it was present
func (r SensorReading) Value(channel string) (float64, bool) {
	v, ok := r.Values[channel]
	return v, ok
}

// Intent is the structured extraction from a free-text question.
// Transient; one per question.
type Intent struct {
	PatientID   string   `json:"patient_id"`
	Dates       []string `json:"list_date"`
	Times       []string `json:"list_time"`
	Channels    []string `json:"vital_sign"`
	IsPlot      bool     `json:"is_plot"`
	Recognition bool     `json:"recognition"`
	IsImage     bool     `json:"is_image"`
}

// ChatAnswer is the response payload of the chat endpoint
type ChatAnswer struct {
	Answer string   `json:"answer"`
	Plots  []string `json:"plots,omitempty"`
}
