package companion

import "time"

// State represents the lifecycle state of a mock connection
type State int

const (
	// StateDisconnected is both the initial and the terminal state; a
	// reconnect re-enters StateConnected with a fresh connection value.
	StateDisconnected State = iota
	StateConnected
)

// String returns the state's wire-friendly name
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is a snapshot of one simulated companion peer attached to the
// host. Values handed to observers are copies; mutating them has no effect on
// manager-owned state.
//
// ID is unique per successful connect, so a reconnect of the same DeviceID
// yields a distinguishable connection. DeviceID is the stable identifier of
// the simulated peer.
type Connection struct {
	ID             string            `json:"id"`
	DeviceID       string            `json:"device_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	State          State             `json:"state"`
	ConnectedAt    time.Time         `json:"connected_at"`
	DisconnectedAt time.Time         `json:"disconnected_at,omitzero"`
}

// Connected reports whether the snapshot was taken in the Connected state.
func (c Connection) Connected() bool {
	return c.State == StateConnected
}

// snapshot returns a copy with its own metadata map, safe to hand out.
func (c Connection) snapshot() Connection {
	if c.Metadata == nil {
		return c
	}
	md := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = v
	}
	c.Metadata = md
	return c
}
