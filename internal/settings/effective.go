package settings

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Effective is one fully resolved settings snapshot: defaults, then the
// persisted document, then environment overrides. Snapshots are read-only;
// all writes go through Resolver.Update.
type Effective struct {
	Model          string  `yaml:"model" json:"model"`
	RoundSize      int     `yaml:"round_size" json:"round_size"`
	Port           int     `yaml:"port" json:"port"`
	ThinkingBudget int     `yaml:"thinking_budget" json:"thinking_budget"`
	Profile        Profile `yaml:"profile" json:"profile"`

	Approaches     map[string]Approach     `yaml:"approaches" json:"approaches"`
	Media          map[string]MediaType    `yaml:"media" json:"media"`
	ContextSources map[string]SourceConfig `yaml:"context_sources" json:"context_sources"`
	Pairings       map[string]PairingType  `yaml:"pairings" json:"pairings"`
	Output         map[string]OutputConfig `yaml:"output" json:"output"`
}

// Profile locates the user's profile document.
type Profile struct {
	Dir  string `yaml:"dir" json:"dir"`
	Name string `yaml:"name" json:"name"`
}

// Approach is a named discovery strategy. The set is open: the engine treats
// approach names as opaque strings and only this registry knows the metadata.
type Approach struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
	PromptHint  string  `yaml:"prompt_hint" json:"prompt_hint"`
	Weight      float64 `yaml:"weight" json:"weight"`
}

// MediaType describes one content format recommendations can take.
type MediaType struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	SearchHints string `yaml:"search_hints" json:"search_hints"`
	PromptHint  string `yaml:"prompt_hint" json:"prompt_hint"`
}

// SourceConfig configures one context source. Type selects the variant
// (loader, command, mcp); the remaining fields are variant-specific.
type SourceConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Type        string `yaml:"type" json:"type"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	PromptHint  string `yaml:"prompt_hint" json:"prompt_hint"`
	Path        string `yaml:"path" json:"path"`
	Command     string `yaml:"command" json:"command"`
	URL         string `yaml:"url" json:"url"`
}

// PairingType describes one kind of contextual bonus content.
type PairingType struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	SearchBased bool   `yaml:"search_based" json:"search_based"`
	PromptHint  string `yaml:"prompt_hint" json:"prompt_hint"`
	Icon        string `yaml:"icon" json:"icon"`
}

// OutputConfig describes one output destination entry.
type OutputConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Command     string `yaml:"command" json:"command"`
	URL         string `yaml:"url" json:"url"`
}

// EnabledApproaches returns the names of enabled approaches in no particular
// order. Callers that need stable ordering sort the result.
func (e *Effective) EnabledApproaches() []string {
	var names []string
	for name, a := range e.Approaches {
		if a.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// EnabledPairings returns the enabled pairing types keyed by name.
func (e *Effective) EnabledPairings() map[string]PairingType {
	out := make(map[string]PairingType)
	for name, p := range e.Pairings {
		if p.Enabled {
			out[name] = p
		}
	}
	return out
}

// decodeEffective converts a merged generic tree into the typed snapshot.
// Round-tripping through yaml keeps one schema definition (the struct tags)
// for both the persisted document and the resolved view.
func decodeEffective(tree map[string]any) (*Effective, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode settings tree: %w", err)
	}
	var eff Effective
	if err := yaml.Unmarshal(data, &eff); err != nil {
		return nil, fmt.Errorf("decode settings tree: %w", err)
	}
	return &eff, nil
}
