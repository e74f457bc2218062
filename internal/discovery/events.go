// Package discovery runs discovery rounds: it builds the agent prompt from
// session state, consumes the agent's chunked event transport, extracts the
// structured result, and commits the batch to the session.
package discovery

import (
	"github.com/serendipitylabs/serendipity/internal/session"
)

// Transport event names. The agent side additionally emits "result" frames
// carrying free text that still needs block extraction; those never reach
// consumers directly, the orchestrator folds them into a complete or error
// event.
const (
	EventStatus   = "status"
	EventToolUse  = "tool_use"
	EventComplete = "complete"
	EventError    = "error"

	eventResult = "result"
)

// StatusPayload is a human-readable progress note.
type StatusPayload struct {
	Message string `json:"message"`
}

// ToolUsePayload reports a single tool invocation by the agent. Query, Message
// and URL are optional detail fields depending on the tool.
type ToolUsePayload struct {
	Tool    string `json:"tool"`
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

// CompletePayload is the terminal success event: the structured output of one
// round, already validated.
type CompletePayload struct {
	Success         bool                     `json:"success"`
	BatchTitle      string                   `json:"batch_title,omitempty"`
	Recommendations []session.Recommendation `json:"recommendations"`
	Pairings        []session.Pairing        `json:"pairings,omitempty"`
}

// ErrorPayload is the terminal failure event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Event is one consumer-facing progress event. Exactly one of the payload
// pointers matching Type is set. A round yields any number of status and
// tool_use events followed by exactly one complete or error.
type Event struct {
	Type     string
	Status   *StatusPayload
	ToolUse  *ToolUsePayload
	Complete *CompletePayload
	Err      *ErrorPayload
}

// Terminal reports whether the event ends the round.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Err: &ErrorPayload{Error: message}}
}
