package domain

// SessionState represents the lifecycle state of a transport session.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionConnected
	SessionClosed
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "Connecting"
	case SessionConnected:
		return "Connected"
	case SessionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
