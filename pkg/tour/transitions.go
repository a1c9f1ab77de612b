package tour

import "flyover/pkg/model"

// New returns an idle tour over wps.
func New(wps []model.Waypoint) *Progress {
	return &Progress{
		State:      StateIdle,
		Waypoints:  wps,
		AudioReady: allAudio(wps),
	}
}

// Start begins an idle or completed tour at its first stop.
// An empty tour, or one already running, is returned unchanged.
func Start(p *Progress) *Progress {
	if len(p.Waypoints) == 0 {
		return p
	}
	if p.State != StateIdle && p.State != StateComplete {
		return p
	}
	n := p.clone()
	n.State = StatePreparing
	n.Index = 0
	n.WaypointProgress = 0
	n.Narrative = p.Waypoints[0].Narrative
	n.Paused = false
	n.resume = ""
	return n
}

// Advance moves to the next stop. Past the last stop the tour completes,
// pinned at the last index; further calls keep it there.
// A paused tour stays paused and resumes into the flight to the next stop.
func Advance(p *Progress) *Progress {
	next := p.Index + 1
	n := p.clone()
	if next >= len(p.Waypoints) {
		n.State = StateComplete
		n.Index = max(0, len(p.Waypoints)-1)
		n.WaypointProgress = 1
		n.Paused = false
		n.resume = ""
		return n
	}
	n.Index = next
	n.WaypointProgress = 0
	n.Narrative = p.Waypoints[next].Narrative
	if p.State == StatePaused {
		n.resume = StateFlying
	} else {
		n.State = StateFlying
	}
	return n
}

// TogglePause pauses an active tour or resumes it into the state it was
// paused from. Idle and complete tours are returned unchanged.
func TogglePause(p *Progress) *Progress {
	if p.State == StateIdle || p.State == StateComplete {
		return p
	}
	n := p.clone()
	if p.State == StatePaused {
		n.State = p.resume
		n.resume = ""
		n.Paused = false
		return n
	}
	n.resume = p.State
	n.State = StatePaused
	n.Paused = true
	return n
}

// Stop resets the tour to idle at its first stop. Attached audio is kept.
func Stop(p *Progress) *Progress {
	n := p.clone()
	n.State = StateIdle
	n.Index = 0
	n.WaypointProgress = 0
	n.Narrative = ""
	n.Paused = false
	n.resume = ""
	return n
}

// AttachAudio merges narratives and audio into the waypoints at the given
// indices. Out-of-range indices are ignored. Works in any state.
func AttachAudio(p *Progress, updates []AudioUpdate) *Progress {
	wps := make([]model.Waypoint, len(p.Waypoints))
	copy(wps, p.Waypoints)

	for _, u := range updates {
		if u.Index < 0 || u.Index >= len(wps) {
			continue
		}
		if u.Narrative != "" {
			wps[u.Index].Narrative = u.Narrative
		}
		if u.Audio != nil {
			wps[u.Index].Audio = u.Audio
		}
	}

	n := p.clone()
	n.Waypoints = wps
	n.AudioReady = allAudio(wps)
	if p.State.Active() && p.Index < len(wps) {
		n.Narrative = wps[p.Index].Narrative
	}
	return n
}

// BeginFlight leaves the preparing phase for the flight to the current stop.
func BeginFlight(p *Progress) *Progress {
	return moveFrom(p, StatePreparing, StateFlying)
}

// Arrive marks the camera as landed on the current stop. The tour narrates
// when audio is attached and lingers silently otherwise.
func Arrive(p *Progress) *Progress {
	to := StateLingering
	if wp := p.Current(); wp != nil && wp.HasAudio() {
		to = StateNarrating
	}
	return moveFrom(p, StateFlying, to)
}

// moveFrom transitions from -> to, also when paused in from.
func moveFrom(p *Progress, from, to State) *Progress {
	switch {
	case p.State == from:
		n := p.clone()
		n.State = to
		return n
	case p.State == StatePaused && p.resume == from:
		n := p.clone()
		n.resume = to
		return n
	}
	return p
}

// SetWaypointProgress records how far through the current stop the tour is.
func SetWaypointProgress(p *Progress, f float64) *Progress {
	if !p.State.Active() {
		return p
	}
	n := p.clone()
	n.WaypointProgress = min(1, max(0, f))
	return n
}

// Seek restarts the tour and advances it to stop i, flying there.
// Out-of-range indices return the input unchanged.
func Seek(p *Progress, i int) *Progress {
	if i < 0 || i >= len(p.Waypoints) {
		return p
	}
	n := Start(Stop(p))
	if i == 0 {
		return BeginFlight(n)
	}
	for n.Index < i {
		n = Advance(n)
	}
	return n
}
