package tour

import "flyover/pkg/model"

// State is the phase a tour is in.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateFlying    State = "flying"
	StateNarrating State = "narrating"
	StateLingering State = "lingering"
	StatePaused    State = "paused"
	StateComplete  State = "complete"
)

// Active reports whether the state is between start and completion.
func (s State) Active() bool {
	switch s {
	case StatePreparing, StateFlying, StateNarrating, StateLingering, StatePaused:
		return true
	}
	return false
}

// Progress is an immutable snapshot of a tour. Transitions return new
// snapshots; holders of an older one never observe a change.
type Progress struct {
	State            State            `json:"state"`
	Waypoints        []model.Waypoint `json:"waypoints"`
	Index            int              `json:"index"`
	WaypointProgress float64          `json:"waypoint_progress"`
	Narrative        string           `json:"narrative"`
	Paused           bool             `json:"paused"`
	AudioReady       bool             `json:"audio_ready"`

	resume State // state interrupted by a pause
}

// AudioUpdate merges synthesis output into one waypoint.
type AudioUpdate struct {
	Index     int
	Narrative string
	Audio     *model.Audio
}

// Len returns the number of waypoints.
func (p *Progress) Len() int {
	return len(p.Waypoints)
}

// Current returns the waypoint at Index, or nil for an empty tour.
func (p *Progress) Current() *model.Waypoint {
	if p.Index < 0 || p.Index >= len(p.Waypoints) {
		return nil
	}
	return &p.Waypoints[p.Index]
}

// Resume returns the state a paused tour returns to.
func (p *Progress) Resume() State {
	if p.State == StatePaused {
		return p.resume
	}
	return p.State
}

func (p *Progress) clone() *Progress {
	c := *p
	return &c
}

func allAudio(wps []model.Waypoint) bool {
	if len(wps) == 0 {
		return false
	}
	for i := range wps {
		if !wps[i].HasAudio() {
			return false
		}
	}
	return true
}
