package collector

// State is the status of a collection run
type State int

const (
	// Running is the only non-terminal state
	Running State = iota
	// Converged means the empty-cycle threshold was reached
	Converged
	// Exhausted means the end-of-feed marker is visible
	Exhausted
	// Capped means the record ceiling was reached
	Capped
	// Stopped means the run observed cancellation
	Stopped
)

var stateNames = map[State]string{
	Running:   "running",
	Converged: "converged",
	Exhausted: "exhausted",
	Capped:    "capped",
	Stopped:   "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the run is over
func (s State) Terminal() bool {
	return s != Running
}

// MarshalText renders the state name in JSON and YAML
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Observation is what a run knows at the end of a cycle
type Observation struct {
	Cancelled   bool
	EndMarker   bool
	Records     int
	EmptyCycles int
}

// Limits bound a run. A non-positive Ceiling disables the cap.
type Limits struct {
	Threshold int
	Ceiling   int
}

// Next is the transition out of Running. Conditions are checked in
// priority order Stopped, Exhausted, Capped, Converged; the first one that
// holds wins.
func Next(o Observation, lim Limits) State {
	switch {
	case o.Cancelled:
		return Stopped
	case o.EndMarker:
		return Exhausted
	case lim.Ceiling > 0 && o.Records >= lim.Ceiling:
		return Capped
	case o.EmptyCycles >= lim.Threshold:
		return Converged
	default:
		return Running
	}
}
