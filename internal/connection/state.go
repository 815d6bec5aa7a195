package connection

// State is the connection manager's lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateShuttingDown State = "shutting_down"
)

// States lists every state in lifecycle order.
var States = []State{
	StateDisconnected,
	StateConnecting,
	StateConnected,
	StateReconnecting,
	StateShuttingDown,
}

func (s State) String() string {
	return string(s)
}
