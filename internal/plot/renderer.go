// Package plot renders sensor channel series to PNG artifacts for the
// dashboard.
package plot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/savegress/vitalink/internal/sensorlog"
)

// ErrNoData signals that a channel had nothing to draw
var ErrNoData = errors.New("no data to plot")

// channelUnits maps channels to a Y-axis unit suffix
var channelUnits = map[string]string{
	"heart_rate":  " (BPM)",
	"temperature": " (°C)",
	"pressure":    " (hPa)",
	"steps":       " (count)",
}

// Renderer writes plot artifacts to a directory and returns stable
// references to them.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer writing into dir
func NewRenderer(dir string) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}
	return &Renderer{dir: dir}, nil
}

// Render draws one channel series and returns the artifact reference.
// Points are sorted by timestamp before drawing; an empty series
// returns ErrNoData. Filenames carry the channel, generation time, and
// a random suffix so concurrent requests never collide.
func (r *Renderer) Render(points []sensorlog.Point, channel string, windowMinutes int) (string, error) {
	if len(points) == 0 {
		return "", ErrNoData
	}

	sorted := make([]sensorlog.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	xys := make(plotter.XYs, len(sorted))
	for i, pt := range sorted {
		xys[i].X = float64(pt.Timestamp.Unix())
		xys[i].Y = pt.Value
	}

	p := plot.New()

	title := ChannelTitle(channel)
	if windowMinutes > 0 {
		title += fmt.Sprintf(" - Last %d Minutes", windowMinutes)
	}
	p.Title.Text = title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = ChannelTitle(channel) + channelUnits[channel]
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Add(plotter.NewGrid())

	line, pts, err := plotter.NewLinePoints(xys)
	if err != nil {
		return "", fmt.Errorf("failed to build line: %w", err)
	}
	p.Add(line, pts)

	name := fmt.Sprintf("plot_%s_%s_%s.png",
		channel,
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
	)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, filepath.Join(r.dir, name)); err != nil {
		return "", fmt.Errorf("failed to save plot: %w", err)
	}

	return "/plots/" + name, nil
}

// ChannelTitle converts a channel name to its human-readable form
func ChannelTitle(channel string) string {
	words := strings.Split(channel, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
