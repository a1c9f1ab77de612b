package api

import (
	"math"
	"net/http"

	"flyover/pkg/tracker"
)

// PipelineStats is the view of the synthesis pipeline shown in stats.
type PipelineStats interface {
	InFlight() int
	Epoch() uint64
	Pregenerating() bool
}

// StatsHandler reports provider usage and synthesis load.
type StatsHandler struct {
	tracker  *tracker.Tracker
	pipeline PipelineStats
}

// NewStatsHandler creates a new StatsHandler. pipeline may be nil.
func NewStatsHandler(t *tracker.Tracker, pipeline PipelineStats) *StatsHandler {
	return &StatsHandler{tracker: t, pipeline: pipeline}
}

// ProviderStatsDTO is one provider's counters.
type ProviderStatsDTO struct {
	tracker.Stats
	HitPercent int64 `json:"hit_rate"`
}

// PipelineDTO is the synthesis load.
type PipelineDTO struct {
	InFlight      int    `json:"in_flight"`
	Epoch         uint64 `json:"epoch"`
	Pregenerating bool   `json:"pregenerating"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Providers map[string]ProviderStatsDTO `json:"providers"`
	Pipeline  *PipelineDTO                `json:"pipeline,omitempty"`
}

// HandleStats handles GET /api/stats
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Providers: make(map[string]ProviderStatsDTO)}
	for name, s := range h.tracker.Snapshot() {
		resp.Providers[name] = ProviderStatsDTO{Stats: s, HitPercent: int64(math.Round(s.HitRate() * 100))}
	}
	if h.pipeline != nil {
		resp.Pipeline = &PipelineDTO{
			InFlight:      h.pipeline.InFlight(),
			Epoch:         h.pipeline.Epoch(),
			Pregenerating: h.pipeline.Pregenerating(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
