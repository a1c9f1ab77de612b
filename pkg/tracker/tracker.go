// Package tracker counts synthesis and language model calls per provider.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Event is one countable outcome of a provider call.
type Event int

const (
	CacheHit Event = iota
	CacheMiss
	Success
	Failure
	Empty    // call succeeded but produced no audio or text
	Fallback // provider stood in for a failed primary
	numEvents
)

// Tracker is safe for concurrent use. A nil Tracker ignores every event.
type Tracker struct {
	mu       sync.RWMutex
	counters map[string]*[numEvents]atomic.Int64
}

// Stats is a point-in-time copy of one provider's counters.
type Stats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Successes   int64 `json:"successes"`
	Failures    int64 `json:"failures"`
	Empty       int64 `json:"empty"`
	Fallbacks   int64 `json:"fallbacks"`
}

// HitRate is the share of cache lookups served from the cache, 0 without lookups.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{counters: make(map[string]*[numEvents]atomic.Int64)}
}

func (t *Tracker) of(provider string) *[numEvents]atomic.Int64 {
	t.mu.RLock()
	c, ok := t.counters[provider]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.counters[provider]; !ok {
		c = new([numEvents]atomic.Int64)
		t.counters[provider] = c
	}
	return c
}

// Track counts one event for provider.
func (t *Tracker) Track(provider string, e Event) {
	if t == nil || e < 0 || e >= numEvents {
		return
	}
	t.of(provider)[e].Add(1)
}

// Snapshot returns the counters of every provider seen so far.
func (t *Tracker) Snapshot() map[string]Stats {
	if t == nil {
		return map[string]Stats{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Stats, len(t.counters))
	for name, c := range t.counters {
		out[name] = Stats{
			CacheHits:   c[CacheHit].Load(),
			CacheMisses: c[CacheMiss].Load(),
			Successes:   c[Success].Load(),
			Failures:    c[Failure].Load(),
			Empty:       c[Empty].Load(),
			Fallbacks:   c[Fallback].Load(),
		}
	}
	return out
}
