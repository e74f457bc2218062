// Package sources gathers prompt context from configured providers: local
// files, shell commands and remote MCP servers. The registry is built from
// the settings snapshot and feeds both the prompt (content sources) and the
// agent toolset (MCP sources).
package sources

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/settings"
)

// Source produces one block of prompt context.
type Source interface {
	Name() string
	Collect(ctx context.Context) (string, error)
}

// Registry holds the configured sources for one settings snapshot.
type Registry struct {
	content []contentEntry
	mcps    []*mcpSource
	logger  *zap.Logger
}

type contentEntry struct {
	source     Source
	display    string
	promptHint string
}

// FromSettings builds the registry. Disabled sources are skipped, sources
// with an unknown type are skipped with a warning. Source order follows the
// sorted configuration names so prompts stay stable across runs.
func FromSettings(eff *settings.Effective, logger *zap.Logger) *Registry {
	r := &Registry{logger: logger}

	names := make([]string, 0, len(eff.ContextSources))
	for name := range eff.ContextSources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := eff.ContextSources[name]
		if !cfg.Enabled {
			continue
		}
		display := cfg.DisplayName
		if display == "" {
			display = name
		}

		switch cfg.Type {
		case "loader":
			r.content = append(r.content, contentEntry{
				source:     &loaderSource{name: name, path: ExpandPath(cfg.Path, eff.Profile)},
				display:    display,
				promptHint: cfg.PromptHint,
			})
		case "command":
			r.content = append(r.content, contentEntry{
				source:     &commandSource{name: name, command: cfg.Command},
				display:    display,
				promptHint: cfg.PromptHint,
			})
		case "mcp":
			r.mcps = append(r.mcps, newMCPSource(name, cfg.URL, logger))
		default:
			logger.Warn("skipping context source with unknown type",
				zap.String("source", name), zap.String("type", cfg.Type))
		}
	}
	return r
}

// Sections collects every content source. A failing source becomes a warning
// and is left out; one broken source never sinks the round.
func (r *Registry) Sections(ctx context.Context) ([]string, []string) {
	var sections, warnings []string
	for _, entry := range r.content {
		content, err := entry.source.Collect(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("source %s: %v", entry.source.Name(), err))
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Context from %s:\n", entry.display)
		if entry.promptHint != "" {
			b.WriteString(entry.promptHint + "\n")
		}
		b.WriteString(content)
		sections = append(sections, b.String())
	}
	return sections, warnings
}

// Close shuts down any live MCP connections.
func (r *Registry) Close() {
	for _, m := range r.mcps {
		m.close()
	}
}

// ExpandPath substitutes the {home}, {profile_dir} and {profile_name}
// placeholders a source path may carry.
func ExpandPath(path string, prof settings.Profile) string {
	if strings.Contains(path, "{home}") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "{home}", home)
		}
	}
	path = strings.ReplaceAll(path, "{profile_dir}", prof.Dir)
	path = strings.ReplaceAll(path, "{profile_name}", prof.Name)
	return path
}

// loaderSource reads a local file. A missing file yields empty content, not
// an error, so fresh installs work before the profile exists.
type loaderSource struct {
	name string
	path string
}

func (s *loaderSource) Name() string { return s.name }

func (s *loaderSource) Collect(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", s.path, err)
	}
	return string(data), nil
}
