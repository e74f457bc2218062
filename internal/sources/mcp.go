package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/agent"
)

// toolPrefix namespaces MCP tools so calls can be routed back to the server
// that owns them: mcp__<source>__<tool>.
const toolPrefix = "mcp__"

const mcpConnectTimeout = 30 * time.Second

// mcpSource is one remote MCP server. The session is established lazily on
// first use and cached; a dead session is dropped and redialed on the next
// call.
type mcpSource struct {
	name   string
	url    string
	logger *zap.Logger

	mu      sync.Mutex
	session *mcp.ClientSession
}

func newMCPSource(name, url string, logger *zap.Logger) *mcpSource {
	return &mcpSource{name: name, url: url, logger: logger}
}

func (s *mcpSource) connect(ctx context.Context) (*mcp.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}

	ctx, cancel := context.WithTimeout(ctx, mcpConnectTimeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "serendipity",
		Version: "1.0.0",
	}, &mcp.ClientOptions{
		KeepAlive: 30 * time.Second,
	})

	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: s.url}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", s.url, err)
	}
	s.session = session

	// Drop the cached session when the server hangs up so the next call
	// redials instead of failing forever.
	go func() {
		_ = session.Wait()
		s.mu.Lock()
		if s.session == session {
			s.session = nil
		}
		s.mu.Unlock()
	}()
	return session, nil
}

func (s *mcpSource) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
}

// tools lists the server's tools as namespaced defs.
func (s *mcpSource) tools(ctx context.Context) ([]agent.ToolDef, error) {
	session, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	defs := make([]agent.ToolDef, 0, len(result.Tools))
	for _, tool := range result.Tools {
		var schema json.RawMessage
		if tool.InputSchema != nil {
			schema, _ = json.Marshal(tool.InputSchema)
		}
		defs = append(defs, agent.ToolDef{
			Name:        toolPrefix + s.name + "__" + tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// call executes one tool on the server and flattens the text content.
func (s *mcpSource) call(ctx context.Context, tool string, input json.RawMessage) (string, error) {
	session, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("parsing tool arguments: %w", err)
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		s.close()
		return "", fmt.Errorf("calling %s: %w", tool, err)
	}

	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", tool, b.String())
	}
	return b.String(), nil
}

// Tools lists every reachable MCP server's tools. An unreachable server is
// logged and contributes nothing.
func (r *Registry) Tools() []agent.ToolDef {
	if len(r.mcps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mcpConnectTimeout)
	defer cancel()

	var defs []agent.ToolDef
	for _, m := range r.mcps {
		tools, err := m.tools(ctx)
		if err != nil {
			r.logger.Warn("mcp source unavailable", zap.String("source", m.name), zap.Error(err))
			continue
		}
		defs = append(defs, tools...)
	}
	return defs
}

// Executor routes namespaced tool calls back to their MCP source. Nil when
// no MCP sources are configured, so the agent declares no tools it cannot
// have executed.
func (r *Registry) Executor() agent.ToolExecutor {
	if len(r.mcps) == 0 {
		return nil
	}
	return r
}

// Execute implements agent.ToolExecutor.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	source, tool, err := splitToolName(name)
	if err != nil {
		return "", err
	}
	for _, m := range r.mcps {
		if m.name == source {
			return m.call(ctx, tool, input)
		}
	}
	return "", fmt.Errorf("no mcp source %q", source)
}

func splitToolName(name string) (source, tool string, err error) {
	rest, ok := strings.CutPrefix(name, toolPrefix)
	if !ok {
		return "", "", fmt.Errorf("not an mcp tool: %q", name)
	}
	source, tool, ok = strings.Cut(rest, "__")
	if !ok || source == "" || tool == "" {
		return "", "", fmt.Errorf("malformed mcp tool name: %q", name)
	}
	return source, tool, nil
}
