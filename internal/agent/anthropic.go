package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"go.uber.org/zap"
)

const (
	defaultMaxTokens = 8192

	// maxTurns bounds the tool loop so a confused collaborator cannot spin
	// forever burning tokens.
	maxTurns = 8
)

// Claude drives the Anthropic Messages API and serializes its stream into
// the framed transport. Tool calls are executed locally through the
// request's executor and fed back until the model produces a final text
// turn, which is emitted as a result frame.
type Claude struct {
	client anthropic.Client
	logger *zap.Logger
}

// NewClaude builds the adapter. The model is chosen per request, not here.
func NewClaude(apiKey string, logger *zap.Logger) *Claude {
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

// Invoke starts the round and returns the read side of the framed stream.
// The stream always ends with a result or error frame unless the reader is
// closed first.
func (c *Claude) Invoke(ctx context.Context, req Request) (io.ReadCloser, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("no model configured")
	}
	pr, pw := io.Pipe()
	go c.run(ctx, req, pw)
	return pr, nil
}

// toolCall is one pending call collected from a streamed turn.
type toolCall struct {
	id    string
	name  string
	input json.RawMessage
}

func (c *Claude) run(ctx context.Context, req Request, pw *io.PipeWriter) {
	defer pw.Close()

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(strings.Join(req.PromptSections, "\n\n"))),
	}
	tools := c.buildTools(req.Tools)

	WriteFrame(pw, "status", StatusFrame{Message: "planning this round"})

	for turn := 0; turn < maxTurns; turn++ {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(req.Model),
			MaxTokens: int64(defaultMaxTokens),
			Messages:  messages,
		}
		if len(tools) > 0 {
			params.Tools = tools
		}
		if req.ThinkingBudget > 0 {
			params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
			params.MaxTokens = int64(req.ThinkingBudget + defaultMaxTokens)
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		text, calls, err := c.consumeTurn(stream, pw)
		if err != nil {
			WriteFrame(pw, "error", ErrorFrame{Error: err.Error()})
			return
		}

		if len(calls) == 0 {
			WriteFrame(pw, "result", ResultFrame{Text: text})
			return
		}
		if req.Executor == nil {
			WriteFrame(pw, "error", ErrorFrame{Error: "agent requested tools but no executor is wired"})
			return
		}

		messages = append(messages, assistantTurn(text, calls))
		results := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
		for _, call := range calls {
			out, err := req.Executor.Execute(ctx, call.name, call.input)
			isErr := false
			if err != nil {
				c.logger.Warn("tool call failed", zap.String("tool", call.name), zap.Error(err))
				out, isErr = err.Error(), true
			}
			results = append(results, anthropic.NewToolResultBlock(call.id, out, isErr))
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	WriteFrame(pw, "error", ErrorFrame{Error: "tool loop exceeded turn limit"})
}

// consumeTurn drains one streamed model turn, forwarding progress frames and
// returning the turn's text plus any tool calls to execute.
func (c *Claude) consumeTurn(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], pw *io.PipeWriter) (string, []toolCall, error) {
	var (
		text        strings.Builder
		calls       []toolCall
		currentID   string
		currentName string
		inputBuf    strings.Builder
		thinking    bool
	)

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			cb := event.AsContentBlockStart()
			if toolUse, ok := cb.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				currentID = toolUse.ID
				currentName = toolUse.Name
				inputBuf.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(d.Text)
			case anthropic.InputJSONDelta:
				inputBuf.WriteString(d.PartialJSON)
			case anthropic.ThinkingDelta:
				if !thinking {
					thinking = true
					WriteFrame(pw, "status", StatusFrame{Message: "thinking through your profile"})
				}
			}

		case "content_block_stop":
			if currentID != "" {
				input := json.RawMessage(inputBuf.String())
				calls = append(calls, toolCall{id: currentID, name: currentName, input: input})
				WriteFrame(pw, "tool_use", toolUseFrame(currentName, input))
				currentID, currentName = "", ""
				inputBuf.Reset()
			}

		case "message_stop":
			return text.String(), calls, nil

		case "error":
			return "", nil, fmt.Errorf("stream error: %s", event.RawJSON())
		}
	}

	if err := stream.Err(); err != nil {
		return "", nil, err
	}
	return text.String(), calls, nil
}

// toolUseFrame surfaces the most useful detail field the input carries.
func toolUseFrame(name string, input json.RawMessage) ToolUseFrame {
	frame := ToolUseFrame{Tool: name}
	var fields struct {
		Query string `json:"query"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(input, &fields); err == nil {
		frame.Query = fields.Query
		frame.URL = fields.URL
	}
	return frame
}

func assistantTurn(text string, calls []toolCall) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	for _, call := range calls {
		var input map[string]interface{}
		if err := json.Unmarshal(call.input, &input); err != nil || input == nil {
			input = map[string]interface{}{}
		}
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    call.id,
				Name:  call.name,
				Input: input,
			},
		})
	}
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleAssistant,
		Content: blocks,
	}
}

func (c *Claude) buildTools(defs []ToolDef) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema map[string]interface{}
		if len(def.InputSchema) > 0 {
			if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
				c.logger.Warn("skipping tool with bad schema", zap.String("tool", def.Name), zap.Error(err))
				continue
			}
		}

		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{},
		}
		if schema != nil {
			toolParam.InputSchema.Properties = schema["properties"]
			if required, ok := schema["required"].([]interface{}); ok {
				reqStrings := make([]string, len(required))
				for i, r := range required {
					reqStrings[i], _ = r.(string)
				}
				toolParam.InputSchema.Required = reqStrings
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}
