// Package journal carries companion lifecycle events from the manager to
// interested consumers: a bounded live feed with overwrite-oldest semantics
// and a retained journal that renders transcripts for harnesses and the CLI.
package journal

import "fmt"

// EventType marks whether a companion connected or disconnected
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
)

// String returns the event type's transcript name
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one companion lifecycle transition. Seq is assigned by the
// publishing manager and is strictly increasing per manager, so consumers can
// detect gaps after feed overwrites.
type Event struct {
	Type         EventType `json:"type"`
	DeviceID     string    `json:"device_id"`
	ConnectionID string    `json:"connection_id"`
	Seq          uint64    `json:"seq"`
	TsUs         int64     `json:"ts_us"`
}

// TranscriptLine renders the event as one stable line, e.g.
// "3 connected phone-42". Timestamps and connection IDs are left out so
// transcripts stay comparable across runs.
func (e Event) TranscriptLine() string {
	return fmt.Sprintf("%d %s %s", e.Seq, e.Type, e.DeviceID)
}
