package channel

// State is the connection state reported to the view.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateDisconnected is terminal and only reached through Unsubscribe.
	StateDisconnected State = "disconnected"
)

// Banner is the text a view shows for the state. Connected has none.
func (s State) Banner() string {
	switch s {
	case StateConnecting:
		return "Connecting…"
	case StateReconnecting:
		return "Reconnecting…"
	case StateDisconnected:
		return "Disconnected"
	}
	return ""
}
