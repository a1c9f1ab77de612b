package model

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Location is a read-only event/place record supplied by the registry.
type Location struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	StartDate   time.Time `json:"start_date"` // zero when unknown
	IsFree      bool      `json:"is_free"`
	Price       string    `json:"price,omitempty"`
	Point       orb.Point `json:"point"` // lon, lat
}

// Lon returns the longitude.
func (l *Location) Lon() float64 { return l.Point.Lon() }

// Lat returns the latitude.
func (l *Location) Lat() float64 { return l.Point.Lat() }

// CameraTarget describes where and how the camera should end up.
type CameraTarget struct {
	Center   orb.Point     `json:"center"`
	Zoom     float64       `json:"zoom"`
	Pitch    float64       `json:"pitch"`
	Bearing  float64       `json:"bearing"`
	Duration time.Duration `json:"duration"`
}

// Audio is a synthesized, playable clip held in memory.
type Audio struct {
	Data     []byte `json:"-"`
	Format   string `json:"format"` // "wav", "mp3"
	Voice    string `json:"voice,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Empty reports whether there is nothing to play.
func (a *Audio) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// Waypoint is one compiled stop of a tour.
type Waypoint struct {
	Location  Location      `json:"location"`
	Camera    CameraTarget  `json:"camera"`
	Narrative string        `json:"narrative"`
	Linger    time.Duration `json:"linger"`
	Audio     *Audio        `json:"audio,omitempty"`
}

// HasAudio reports whether narration audio is attached.
func (w *Waypoint) HasAudio() bool {
	return !w.Audio.Empty()
}

// FirstWord returns the first whitespace-separated word of s.
func FirstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
