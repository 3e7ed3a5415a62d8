// Package stream serializes orchestrator progress into a deduplicated,
// ordered event stream for external consumers.
package stream

// EventType discriminates stream event records.
type EventType string

// Event type constants. Exactly one done or error record terminates a
// stream.
const (
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventToken     EventType = "token"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// IsTerminal returns true if this event type ends the stream.
func (e EventType) IsTerminal() bool {
	return e == EventDone || e == EventError
}

// Event is a single line-delimited JSON record on the outbound stream.
// Each type carries only the payload its consumers need.
type Event struct {
	Type EventType `json:"type"`

	// tool_start / tool_end
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Summary string         `json:"summary,omitempty"`

	// token
	Text string `json:"text,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
