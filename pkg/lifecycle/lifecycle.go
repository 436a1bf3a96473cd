package lifecycle

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateStreaming
	StateClosing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateStreaming:
		return "Streaming"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// EventEmitter is called after every successful transition.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// validTransitions lists, per state, the states it may move to.
var validTransitions = map[State][]State{
	StateDisconnected:   {StateConnecting},
	StateConnecting:     {StateAuthenticating, StateDisconnected},
	StateAuthenticating: {StateStreaming, StateClosing, StateDisconnected},
	StateStreaming:      {StateClosing, StateDisconnected},
	StateClosing:        {StateDisconnected},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
