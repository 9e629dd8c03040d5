// Package dispatch turns a free-text clinician question into an answer
// payload by choosing one of four handling strategies: live-vitals
// fetch, historical plot, historical text summary, or conversational
// fallback.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/savegress/vitalink/internal/assistant"
	"github.com/savegress/vitalink/internal/gateway"
	"github.com/savegress/vitalink/internal/plot"
	"github.com/savegress/vitalink/internal/sensorlog"
	"github.com/savegress/vitalink/pkg/models"
)

// vitalsKeywords short-circuit the whole chain to a fresh fetch from
// the gateway's REST surface.
var vitalsKeywords = []string{
	"latest", "current", "recent", "vitals", "blood pressure", "spo2", "oxygen",
}

// plotKeywords flag plot intent when the classifier did not
var plotKeywords = []string{
	"plot", "graph", "chart", "visualize", "show", "trend", "history", "variation",
}

// channelFallbacks maps question keywords to sensor channels. The
// table is ordered; the first keyword found in the question wins and
// later matches are not merged in.
var channelFallbacks = []struct {
	keyword  string
	channels []string
}{
	{"heart rate", []string{"heart_rate"}},
	{"heartrate", []string{"heart_rate"}},
	{"hr", []string{"heart_rate"}},
	{"pulse", []string{"heart_rate"}},
	{"bpm", []string{"heart_rate"}},
	{"steps", []string{"steps"}},
	{"accelerometer", []string{"accelerometer_x", "accelerometer_y", "accelerometer_z"}},
	{"gyroscope", []string{"gyroscope_x", "gyroscope_y", "gyroscope_z"}},
	{"temperature", []string{"temperature"}},
	{"temp", []string{"temperature"}},
	{"pressure", []string{"pressure"}},
	{"light", []string{"light"}},
	{"proximity", []string{"proximity"}},
}

var (
	minutePattern = regexp.MustCompile(`(\d+)\s*minute`)
	hourPattern   = regexp.MustCompile(`(\d+)\s*hour`)
)

// IntentClassifier extracts a structured intent from a question
type IntentClassifier interface {
	Classify(ctx context.Context, question string) (models.Intent, error)
	NormalizeWindow(intent *models.Intent)
}

// LogReader loads the sensor ingest log fresh from durable storage
type LogReader interface {
	Load() ([]models.SensorReading, error)
}

// Renderer produces a plot artifact reference for a channel series
type Renderer interface {
	Render(points []sensorlog.Point, channel string, windowMinutes int) (string, error)
}

// Dispatcher orchestrates retrieval, filtering, and response assembly
// for clinician questions.
type Dispatcher struct {
	completer  assistant.Completer
	classifier IntentClassifier
	vitals     gateway.VitalsFetcher
	logReader  LogReader
	renderer   Renderer
	now        func() time.Time
}

// NewDispatcher wires a dispatcher from its collaborators
func NewDispatcher(completer assistant.Completer, classifier IntentClassifier, vitals gateway.VitalsFetcher, logReader LogReader, renderer Renderer) *Dispatcher {
	return &Dispatcher{
		completer:  completer,
		classifier: classifier,
		vitals:     vitals,
		logReader:  logReader,
		renderer:   renderer,
		now:        time.Now,
	}
}

// Answer resolves one question. Every failure mode returns a
// well-formed answer payload; nothing propagates.
func (d *Dispatcher) Answer(ctx context.Context, question string) models.ChatAnswer {
	lower := strings.ToLower(question)

	// Live-vitals short-circuit: ask the source of truth fresh,
	// bypassing both the classifier and the cached store.
	if containsAny(lower, vitalsKeywords) {
		return d.liveVitals(ctx, question)
	}

	intent, err := d.classifier.Classify(ctx, question)
	if err != nil {
		// Classifier failure is not fatal: proceed with an empty
		// intent and lean on the keyword fallbacks.
		log.Printf("Intent classification failed: %v", err)
		intent = models.Intent{}
	}
	d.classifier.NormalizeWindow(&intent)

	// Time-window parsing runs on the raw text regardless of what the
	// classifier produced. The hour pattern is evaluated second and
	// overwrites the minute pattern when both match.
	windowMinutes := parseWindowMinutes(lower)

	channels := intent.Channels
	if len(channels) == 0 {
		channels = fallbackChannels(lower)
	}

	isPlot := intent.IsPlot
	if !isPlot {
		isPlot = containsAny(lower, plotKeywords)
	}

	switch {
	case isPlot && len(channels) > 0:
		return d.plotStrategy(question, channels, windowMinutes)
	case len(channels) > 0:
		return d.summaryStrategy(ctx, question, channels, windowMinutes)
	default:
		return d.conversationalFallback(ctx, question)
	}
}

// liveVitals fetches the current snapshot from the gateway REST
// surface and hands a fixed-format summary to the assistant.
func (d *Dispatcher) liveVitals(ctx context.Context, question string) models.ChatAnswer {
	v, err := d.vitals.FetchCurrentVitals(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrBadStatus) {
			return models.ChatAnswer{Answer: "Could not fetch current vitals from server."}
		}
		return models.ChatAnswer{Answer: fmt.Sprintf("Error fetching current vitals: %v", err)}
	}

	recordedAt := v.RecordedAt
	if recordedAt == "" {
		recordedAt = "N/A"
	}
	vitalsText := fmt.Sprintf(
		"• Heart Rate: %s BPM\n"+
			"• SpO2: %s%%\n"+
			"• Blood Pressure: %s/%s mmHg\n"+
			"• Skin Temp: %s°C\n"+
			"• Last Updated: %s",
		formatValue(v.HeartRate),
		formatValue(v.SpO2),
		formatValue(v.BloodPressure.Systolic),
		formatValue(v.BloodPressure.Diastolic),
		formatValue(v.SkinTemperature),
		recordedAt,
	)

	prompt := fmt.Sprintf("User question: %s\n\n%s\n\nProvide professional response.", question, vitalsText)
	reply, err := d.completer.Complete(ctx, assistant.CompletionRequest{
		Text:       prompt,
		SystemRole: assistant.RoleMedicalAssistant,
	})
	if err != nil {
		return models.ChatAnswer{Answer: fmt.Sprintf("Error: %v", err)}
	}
	return models.ChatAnswer{Answer: reply}
}

// plotStrategy renders one artifact per requested channel. Channels
// with nothing to draw are dropped silently.
func (d *Dispatcher) plotStrategy(question string, channels []string, windowMinutes int) models.ChatAnswer {
	readings, answer, ok := d.loadWindowed(windowMinutes, "No data to plot.", "No data to plot in the last %d minutes.")
	if !ok {
		return answer
	}

	plots := make([]string, 0, len(channels))
	for _, channel := range channels {
		points := sensorlog.Series(readings, channel)
		ref, err := d.renderer.Render(points, channel, windowMinutes)
		if err != nil {
			if !errors.Is(err, plot.ErrNoData) {
				log.Printf("Failed to render %s: %v", channel, err)
			}
			continue
		}
		plots = append(plots, ref)
	}

	if len(plots) == 0 {
		return models.ChatAnswer{Answer: "Could not generate plots."}
	}

	text := fmt.Sprintf("Plot for %s", strings.Join(channels, ", "))
	if windowMinutes > 0 {
		text += fmt.Sprintf(" - last %d minutes", windowMinutes)
	}
	return models.ChatAnswer{Answer: text, Plots: plots}
}

// summaryStrategy reports the most recent value per channel and lets
// the assistant phrase the reply.
func (d *Dispatcher) summaryStrategy(ctx context.Context, question string, channels []string, windowMinutes int) models.ChatAnswer {
	readings, answer, ok := d.loadWindowed(windowMinutes, "No sensor data available.", "No sensor data in the last %d minutes.")
	if !ok {
		return answer
	}

	var sb strings.Builder
	for _, channel := range channels {
		if v, ok := sensorlog.LatestValue(readings, channel); ok {
			fmt.Fprintf(&sb, "- %s: %s\n", plot.ChannelTitle(channel), formatValue(v))
		}
	}

	prompt := fmt.Sprintf("User question: %s\n\n%s\n\nProvide clear response.", question, sb.String())
	reply, err := d.completer.Complete(ctx, assistant.CompletionRequest{
		Text:       prompt,
		SystemRole: assistant.RoleMedicalAssistant,
	})
	if err != nil {
		return models.ChatAnswer{Answer: fmt.Sprintf("Error: %v", err)}
	}
	return models.ChatAnswer{Answer: reply}
}

// conversationalFallback relays the raw question to the assistant
func (d *Dispatcher) conversationalFallback(ctx context.Context, question string) models.ChatAnswer {
	reply, err := d.completer.Complete(ctx, assistant.CompletionRequest{
		Text:       question,
		SystemRole: assistant.RoleHelpfulMedicalAssistant,
	})
	if err != nil {
		return models.ChatAnswer{Answer: fmt.Sprintf("Error: %v", err)}
	}
	return models.ChatAnswer{Answer: reply}
}

// loadWindowed loads the log and applies the time window. The two
// message formats keep an empty log distinguishable from a window that
// removed every row.
func (d *Dispatcher) loadWindowed(windowMinutes int, emptyMsg, emptyWindowMsg string) ([]models.SensorReading, models.ChatAnswer, bool) {
	readings, err := d.logReader.Load()
	if err != nil {
		log.Printf("Failed to load sensor log: %v", err)
		return nil, models.ChatAnswer{Answer: emptyMsg}, false
	}
	if len(readings) == 0 {
		return nil, models.ChatAnswer{Answer: emptyMsg}, false
	}

	if windowMinutes > 0 {
		readings = sensorlog.FilterWindow(readings, windowMinutes, d.now())
		if len(readings) == 0 {
			return nil, models.ChatAnswer{Answer: fmt.Sprintf(emptyWindowMsg, windowMinutes)}, false
		}
	}

	return readings, models.ChatAnswer{}, true
}

// parseWindowMinutes scans for "<n> minute" and "<n> hour" patterns.
// When both match, the hour value wins.
func parseWindowMinutes(lower string) int {
	window := 0
	if m := minutePattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			window = n
		}
	}
	if m := hourPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			window = n * 60
		}
	}
	return window
}

// fallbackChannels returns the channel list of the first table entry
// whose keyword appears in the question.
func fallbackChannels(lower string) []string {
	for _, entry := range channelFallbacks {
		if strings.Contains(lower, entry.keyword) {
			return entry.channels
		}
	}
	return nil
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
