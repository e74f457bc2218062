// Package agent abstracts the discovery collaborator: something that takes a
// prompt and a toolset and produces a chunked event stream in the framed
// transport the orchestrator consumes.
package agent

import (
	"context"
	"encoding/json"
	"io"
)

// ToolDef declares one tool the agent may call. InputSchema is a JSON Schema
// object; the zero value means "no parameters".
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolExecutor runs a tool call on behalf of the agent and returns its
// output as text. Implementations decide how names map to actual work.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// Request is one round's invocation. PromptSections are joined in order into
// the user prompt. Executor may be nil when no tools are declared.
type Request struct {
	Model          string
	ThinkingBudget int
	PromptSections []string
	Tools          []ToolDef
	Executor       ToolExecutor
}

// Agent produces the framed event stream for one round. The reader yields
// "event:"/"data:" blocks separated by blank lines; chunk boundaries carry no
// meaning. Closing the reader releases the underlying call.
type Agent interface {
	Invoke(ctx context.Context, req Request) (io.ReadCloser, error)
}
