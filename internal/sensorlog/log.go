// Package sensorlog persists wearable sensor pushes to an append-only
// CSV file and serves time-windowed read-back for queries.
package sensorlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/savegress/vitalink/pkg/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// Log is the durable sensor reading log. Appends write through to the
// CSV file before returning; readers reload the file fresh so they
// never observe an in-memory row that is not yet durable.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open opens the log at path, creating the file with a header row if
// it does not exist yet.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Log{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeHeader(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return l, nil
}

// Path returns the CSV file path
func (l *Log) Path() string {
	return l.path
}

func (l *Log) writeHeader() error {
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"time_stamp"}, models.SensorChannels...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one timestamped row. Timestamps are stored as local
// wall-clock time and read back in the same location. Channels absent
// from values are written as empty cells; unknown channel names are
// ignored. Append and persist are one step: the row is durable before
// Append returns.
func (l *Log) Append(ts time.Time, values map[string]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	record := make([]string, 0, len(models.SensorChannels)+1)
	record = append(record, ts.In(time.Local).Format(timestampLayout))
	for _, channel := range models.SensorChannels {
		if v, ok := values[channel]; ok {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			record = append(record, "")
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush row: %w", err)
	}

	return f.Sync()
}

// Load reads every row from durable storage
func (l *Log) Load() ([]models.SensorReading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	readings := make([]models.SensorReading, 0, len(records)-1)

	for _, record := range records[1:] {
		if len(record) == 0 || record[0] == "" {
			continue
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			continue
		}

		reading := models.SensorReading{
			Timestamp: ts,
			Values:    make(map[string]float64),
		}
		for i := 1; i < len(record) && i < len(header); i++ {
			if record[i] == "" {
				continue
			}
			if v, err := strconv.ParseFloat(record[i], 64); err == nil {
				reading.Values[header[i]] = v
			}
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

// parseTimestamp reads timestamps in the same location Append writes
// them; plain time.Parse would assume UTC and shift rows by the host's
// UTC offset on read-back.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, "2006-01-02 15:04:05.999999", time.RFC3339} {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FilterWindow keeps readings from the trailing window of the given
// length ending at now.
func FilterWindow(readings []models.SensorReading, minutes int, now time.Time) []models.SensorReading {
	cutoff := now.Add(-time.Duration(minutes) * time.Minute)
	out := make([]models.SensorReading, 0, len(readings))
	for _, r := range readings {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Point is one timestamped value of a channel series
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Series extracts the series for one channel, dropping rows where the
// value is missing.
func Series(readings []models.SensorReading, channel string) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Value(channel); ok {
			points = append(points, Point{Timestamp: r.Timestamp, Value: v})
		}
	}
	return points
}

// LatestValue returns the most recent non-missing value of a channel
func LatestValue(readings []models.SensorReading, channel string) (float64, bool) {
	for i := len(readings) - 1; i >= 0; i-- {
		if v, ok := readings[i].Value(channel); ok {
			return v, true
		}
	}
	return 0, false
}
