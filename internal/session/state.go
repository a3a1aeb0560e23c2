package session

// State is the connection state of a Session.
type State int

const (
	StateIdle       State = iota // logged out, no connection
	StateConnecting              // dialing the chat endpoint
	StateOpen                    // connected, heartbeat running
	StateClosed                  // connection lost, reconnect may be pending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
