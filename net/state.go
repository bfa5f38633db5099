package net

// State represents the connection lifecycle state machine.
// A connection is created Disconnected, moves through Connecting to
// Connected, and ends in Disconnected (user initiated) or Error (fault).
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
