// Package registry serves the read-only location records tours are built from.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"flyover/pkg/model"
)

// ErrUnknownLocation is returned by Lookup for ids the registry does not hold.
var ErrUnknownLocation = errors.New("unknown location")

// Registry holds locations in load order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*model.Location
	order []string
}

// New creates a registry and loads the given GeoJSON files.
func New(paths ...string) (*Registry, error) {
	r := &Registry{byID: make(map[string]*model.Location)}
	for _, path := range paths {
		if err := r.Load(path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load reads a GeoJSON FeatureCollection from path.
func (r *Registry) Load(path string) error {
	fc, err := readCollection(path)
	if err != nil {
		return err
	}
	r.Add(fc)
	return nil
}

// Reload replaces every record with the contents of paths. On error the
// registry is left untouched.
func (r *Registry) Reload(paths ...string) error {
	fresh := &Registry{byID: make(map[string]*model.Location)}
	for _, path := range paths {
		if err := fresh.Load(path); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID, r.order = fresh.byID, fresh.order
	return nil
}

func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}
	return fc, nil
}

// Add indexes every usable feature of fc. Features without an id or title
// are skipped; a repeated id replaces the earlier record.
func (r *Registry) Add(fc *geojson.FeatureCollection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, f := range fc.Features {
		loc, ok := fromFeature(f)
		if !ok {
			continue
		}
		if _, seen := r.byID[loc.ID]; !seen {
			r.order = append(r.order, loc.ID)
		}
		r.byID[loc.ID] = loc
		n++
	}
	return n
}

// Len returns the number of locations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns every location in load order.
func (r *Registry) All() []model.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Location, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Get returns the location with the given id.
func (r *Registry) Get(id string) (model.Location, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.byID[id]
	if !ok {
		return model.Location{}, false
	}
	return *loc, true
}

// Lookup resolves ids in the order given. Every unknown id is reported in
// the returned error, which wraps ErrUnknownLocation.
func (r *Registry) Lookup(ids []string) ([]model.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Location, 0, len(ids))
	var missing []string
	for _, id := range ids {
		loc, ok := r.byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, *loc)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, strings.Join(missing, ", "))
	}
	return out, nil
}

func fromFeature(f *geojson.Feature) (*model.Location, bool) {
	if f == nil || f.Geometry == nil {
		return nil, false
	}
	id := featureID(f)
	title := Flatten(getStringProp(f.Properties, "title"))
	if title == "" {
		title = Flatten(getStringProp(f.Properties, "name"))
	}
	if id == "" || title == "" {
		return nil, false
	}

	loc := &model.Location{
		ID:          id,
		Title:       title,
		Venue:       Flatten(getStringProp(f.Properties, "venue")),
		Description: Flatten(getStringProp(f.Properties, "description")),
		Category:    getStringProp(f.Properties, "category"),
		StartDate:   parseDate(getStringProp(f.Properties, "start_date")),
		Price:       getStringProp(f.Properties, "price"),
		Point:       pointOf(f.Geometry),
	}
	if free, ok := f.Properties["is_free"].(bool); ok {
		loc.IsFree = free
	}
	return loc, true
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return getStringProp(f.Properties, "id")
}

// pointOf returns the point itself or the center of any other geometry.
func pointOf(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getStringProp(props geojson.Properties, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
