package stream

// State is the lifecycle state of a manager.
type State int32

const (
	StateCreated State = iota
	StateRunning
	// StateStopping covers both a requested stop and the teardown phase.
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Direction tells which way a manager moves records.
type Direction string

const (
	DirectionRead  Direction = "read"
	DirectionWrite Direction = "write"
)
