package tour

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"flyover/pkg/model"
)

// Cinematic defaults for compiled waypoints.
const (
	DefaultZoom       = 17.5
	DefaultPitch      = 60.0
	DefaultFlightTime = 5 * time.Second
	DefaultLinger     = 8 * time.Second

	bearingSweep = 90.0
	maxSummary   = 80
)

// DefaultCenter is used when a tour has no waypoints to average (Orlando).
var DefaultCenter = orb.Point{-81.3792, 28.5383}

// CompileOptions overrides the cinematic constants. Zero values fall back to the defaults.
type CompileOptions struct {
	Zoom       float64
	Pitch      float64
	FlightTime time.Duration
	Linger     time.Duration
}

func (o CompileOptions) withDefaults() CompileOptions {
	if o.Zoom == 0 {
		o.Zoom = DefaultZoom
	}
	if o.Pitch == 0 {
		o.Pitch = DefaultPitch
	}
	if o.FlightTime <= 0 {
		o.FlightTime = DefaultFlightTime
	}
	if o.Linger <= 0 {
		o.Linger = DefaultLinger
	}
	return o
}

// Compile expands locations into waypoints, one per location and in the same order.
func Compile(locs []model.Location, theme string, opts CompileOptions) []model.Waypoint {
	opts = opts.withDefaults()
	wps := make([]model.Waypoint, len(locs))
	for i := range locs {
		loc := locs[i]
		wps[i] = model.Waypoint{
			Location: loc,
			Camera: model.CameraTarget{
				Center:   loc.Point,
				Zoom:     opts.Zoom,
				Pitch:    opts.Pitch,
				Bearing:  Bearing(i, len(locs)),
				Duration: opts.FlightTime,
			},
			Narrative: Narrate(&loc, theme),
			Linger:    opts.Linger,
		}
	}
	return wps
}

// Bearing sweeps from -45 at the first stop to +45 at the last.
func Bearing(index, total int) float64 {
	span := math.Max(1, float64(total-1))
	return float64(index)/span*bearingSweep - bearingSweep/2
}

var sentenceEnd = regexp.MustCompile(`[.!?]`)

// Narrate builds the fallback narration for a stop.
func Narrate(loc *model.Location, theme string) string {
	var b strings.Builder
	b.WriteString(loc.Title)

	venueWord := strings.ToLower(model.FirstWord(loc.Venue))
	if venueWord != "" && !strings.Contains(strings.ToLower(loc.Title), venueWord) {
		b.WriteString(" at ")
		b.WriteString(loc.Venue)
	}
	if !loc.StartDate.IsZero() {
		b.WriteString(" this ")
		b.WriteString(loc.StartDate.Weekday().String())
	}
	b.WriteString(".")

	if summary := summarize(loc.Description); summary != "" {
		b.WriteString(" ")
		b.WriteString(summary)
		b.WriteString(".")
	}
	if loc.IsFree {
		b.WriteString(" And it's free!")
	}
	if theme != "" {
		b.WriteString(" Part of our ")
		b.WriteString(theme)
		b.WriteString(" tour.")
	}
	return b.String()
}

// summarize returns the first sentence, cut to maxSummary runes.
func summarize(desc string) string {
	first := strings.TrimSpace(sentenceEnd.Split(desc, 2)[0])
	r := []rune(first)
	if len(r) > maxSummary {
		return string(r[:maxSummary]) + "..."
	}
	return first
}

// Center returns the centroid of all waypoint camera centers.
func Center(wps []model.Waypoint) orb.Point {
	if len(wps) == 0 {
		return DefaultCenter
	}
	mp := make(orb.MultiPoint, len(wps))
	for i := range wps {
		mp[i] = wps[i].Camera.Center
	}
	c, _ := planar.CentroidArea(mp)
	return c
}
