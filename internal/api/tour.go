package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flyover/pkg/model"
	"flyover/pkg/registry"
	"flyover/pkg/tour"
)

// TourController is the control surface of the running tour.
type TourController interface {
	Snapshot() *tour.Progress
	Load(wps []model.Waypoint, theme string) *tour.Progress
	Start(ctx context.Context) *tour.Progress
	TogglePause() *tour.Progress
	Stop() *tour.Progress
	Skip() *tour.Progress
	JumpTo(i int) *tour.Progress
}

// TourHandler builds tours from the registry and drives them.
type TourHandler struct {
	registry *registry.Registry
	ctl      TourController
	opts     tour.CompileOptions
}

// NewTourHandler creates a new TourHandler.
func NewTourHandler(reg *registry.Registry, ctl TourController, opts tour.CompileOptions) *TourHandler {
	return &TourHandler{registry: reg, ctl: ctl, opts: opts}
}

// TourRequest asks for a tour over registry locations, in order.
type TourRequest struct {
	IDs   []string `json:"ids"`
	Theme string   `json:"theme"`
	Start bool     `json:"start"` // start right after loading
}

// ControlRequest is a tour control command.
type ControlRequest struct {
	Action string `json:"action"` // "start", "pause", "stop", "skip", "jump"
	Index  *int   `json:"index,omitempty"`
}

// HandleLocations handles GET /api/locations
func (h *TourHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.All())
}

// HandleLoad handles POST /api/tour
func (h *TourHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	var req TourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "no locations requested", http.StatusBadRequest)
		return
	}

	locs, err := h.registry.Lookup(req.IDs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrUnknownLocation) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	p := h.ctl.Load(tour.Compile(locs, req.Theme, h.opts), req.Theme)
	if req.Start {
		p = h.ctl.Start(r.Context())
	}
	slog.Info("API: tour compiled", "stops", p.Len(), "theme", req.Theme, "started", req.Start)
	writeJSON(w, http.StatusOK, p)
}

// HandleStatus handles GET /api/tour
func (h *TourHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// HandleControl handles POST /api/tour/control
func (h *TourHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var p *tour.Progress
	switch req.Action {
	case "start":
		p = h.ctl.Start(r.Context())
	case "pause", "resume":
		p = h.ctl.TogglePause()
	case "stop":
		p = h.ctl.Stop()
	case "skip":
		p = h.ctl.Skip()
	case "jump":
		if req.Index == nil {
			http.Error(w, "jump needs an index", http.StatusBadRequest)
			return
		}
		p = h.ctl.JumpTo(*req.Index)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	slog.Debug("Tour control", "action", req.Action, "state", p.State, "index", p.Index)
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
