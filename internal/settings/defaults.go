package settings

import (
	"os"
	"path/filepath"
)

// DefaultModel is used when neither the settings document nor the
// environment picks one.
const DefaultModel = "claude-sonnet-4-5"

// Defaults returns the built-in settings tree. Callers receive a fresh copy
// on every call so merges never leak back into the package state.
func Defaults() map[string]any {
	return map[string]any{
		"model":           DefaultModel,
		"round_size":      10,
		"port":            9876,
		"thinking_budget": 0,
		"profile": map[string]any{
			"dir":  DefaultBaseDir(),
			"name": "learnings.md",
		},
		"approaches": map[string]any{
			"convergent": map[string]any{
				"enabled":      true,
				"display_name": "Convergent",
				"prompt_hint":  "Match the user's demonstrated taste directly.",
				"weight":       0.5,
			},
			"divergent": map[string]any{
				"enabled":      true,
				"display_name": "Divergent",
				"prompt_hint":  "Expand the user's palette with adjacent but unfamiliar territory.",
				"weight":       0.5,
			},
		},
		"media": map[string]any{
			"article": map[string]any{
				"enabled":      true,
				"display_name": "Articles",
				"search_hints": "{query}",
			},
			"video": map[string]any{
				"enabled":      true,
				"display_name": "Videos",
				"search_hints": "{query} video",
			},
			"music": map[string]any{
				"enabled":      true,
				"display_name": "Music",
				"search_hints": "{query} album OR mix",
			},
			"book": map[string]any{
				"enabled":      false,
				"display_name": "Books",
				"search_hints": "{query} book",
			},
		},
		"context_sources": map[string]any{
			"learnings": map[string]any{
				"enabled":      true,
				"type":         "loader",
				"display_name": "Discovery Learnings",
				"path":         "{profile_dir}/{profile_name}",
			},
		},
		"pairings": map[string]any{
			"music": map[string]any{
				"enabled":      true,
				"display_name": "Listen",
				"search_based": true,
				"prompt_hint":  "Suggest music that complements the batch. Search for real links.",
			},
			"quote": map[string]any{
				"enabled":      true,
				"display_name": "Ponder",
				"search_based": false,
				"prompt_hint":  "Offer a short quote that resonates with the batch.",
			},
		},
		"output": map[string]any{
			"stream": map[string]any{
				"enabled":      true,
				"display_name": "Event Stream",
			},
		},
	}
}

// DefaultBaseDir returns the on-disk home for serendipity state.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".serendipity"
	}
	return filepath.Join(home, ".serendipity")
}
