package stream

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"askvid/internal/models"
)

// maxSummaryLen bounds tool-result text on the external stream.
const maxSummaryLen = 500

// sensitiveArgPattern matches argument names whose values must never
// reach the external stream.
var sensitiveArgPattern = regexp.MustCompile(`(?i)(password|token|secret|credential|api[_-]?key|auth)`)

// Sink receives serialized events in emission order.
type Sink func(Event) error

// Serializer consumes one request's orchestrator progress and emits a
// deduplicated, ordered event stream. State is request-scoped: create
// one Serializer per request.
type Serializer struct {
	mu     sync.Mutex
	sink   Sink
	seen   map[string]bool
	answer strings.Builder
	closed bool
}

// NewSerializer creates a serializer writing to sink.
func NewSerializer(sink Sink) *Serializer {
	return &Serializer{
		sink: sink,
		seen: make(map[string]bool),
	}
}

// emit sends an event unless the stream is already terminated.
// Caller must hold the lock.
func (s *Serializer) emit(ev Event) error {
	if s.closed {
		return nil
	}
	if ev.Type.IsTerminal() {
		s.closed = true
	}
	return s.sink(ev)
}

// ToolStart records a tool invocation. Dedup is keyed on the tool
// name: a second call to the same tool in one request does not emit a
// second tool_start.
func (s *Serializer) ToolStart(name, rawArgs string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := "start-" + name
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true

	return s.emit(Event{
		Type: EventToolStart,
		Tool: name,
		Args: redactArgs(rawArgs),
	})
}

// ToolEnd records a tool result, at most once per tool name.
func (s *Serializer) ToolEnd(name, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := "tool-" + name
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true

	return s.emit(Event{
		Type:    EventToolEnd,
		Tool:    name,
		Summary: escapeMarkup(truncate(result, maxSummaryLen)),
	})
}

// AnswerDelta folds a text fragment into the growing answer and emits
// the settled increment. Identical repeated full-text states emit
// nothing; concatenating all token events reproduces the answer
// exactly once.
func (s *Serializer) AnswerDelta(delta string) error {
	if delta == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.answer.String()
	s.answer.WriteString(delta)
	full := s.answer.String()

	key := "token:" + full
	if full == prev || s.seen[key] {
		return nil
	}
	s.seen[key] = true

	return s.emit(Event{
		Type: EventToken,
		Text: escapeMarkup(full[len(prev):]),
	})
}

// Answer emits any final answer text not yet streamed. Used when the
// provider returned the answer without streaming deltas.
func (s *Serializer) Answer(text string) error {
	streamed := s.AnswerText()
	if text == streamed {
		return nil
	}
	if strings.HasPrefix(text, streamed) {
		return s.AnswerDelta(text[len(streamed):])
	}
	return s.AnswerDelta(text)
}

// AnswerText returns the accumulated answer so far.
func (s *Serializer) AnswerText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer.String()
}

// Done terminates a successful stream. At most one terminal event is
// ever emitted.
func (s *Serializer) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emit(Event{Type: EventDone})
}

// Error terminates a failed stream with an externally safe message.
func (s *Serializer) Error(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emit(Event{
		Type:    EventError,
		Message: escapeMarkup(models.SafeMessage(err)),
	})
}

// Closed reports whether a terminal event has been emitted.
func (s *Serializer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// redactArgs parses raw tool arguments and strips sensitive-looking
// fields. Unparseable arguments are dropped entirely.
func redactArgs(rawArgs string) map[string]any {
	if strings.TrimSpace(rawArgs) == "" {
		return nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil
	}
	for name, val := range args {
		if sensitiveArgPattern.MatchString(name) {
			args[name] = "[REDACTED]"
			continue
		}
		if s, ok := val.(string); ok {
			args[name] = escapeMarkup(s)
		}
	}
	return args
}

// escapeMarkup neutralizes markup injection in free text bound for the
// external stream.
func escapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
