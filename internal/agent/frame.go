package agent

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteFrame emits one framed transport event: an "event:" line, a "data:"
// line with single-line JSON, and a blank-line terminator.
func WriteFrame(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// Frame payloads for the events the agent side emits. The result payload
// carries the collaborator's full free text; block extraction happens on the
// consuming side.
type (
	StatusFrame struct {
		Message string `json:"message"`
	}
	ToolUseFrame struct {
		Tool    string `json:"tool"`
		Query   string `json:"query,omitempty"`
		Message string `json:"message,omitempty"`
		URL     string `json:"url,omitempty"`
	}
	ResultFrame struct {
		Text string `json:"text"`
	}
	ErrorFrame struct {
		Error string `json:"error"`
	}
)
