// Package settings resolves the layered serendipity configuration:
// environment overrides on top of the persisted settings document on top of
// built-in defaults. Resolution is read-only; updates deep-merge a partial
// tree into the persisted document without touching sibling leaves.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Env override variables, applied at read time and never persisted.
const (
	EnvModel          = "SERENDIPITY_MODEL"
	EnvRoundSize      = "SERENDIPITY_ROUND_SIZE"
	EnvPort           = "SERENDIPITY_PORT"
	EnvThinkingBudget = "SERENDIPITY_THINKING_BUDGET"
	EnvProfileDir     = "SERENDIPITY_PROFILE_DIR"
)

// Resolver owns the persisted settings document and produces Effective
// snapshots. Updates are serialized; Resolve is safe to call concurrently
// and never observes a partially applied update.
type Resolver struct {
	mu   sync.Mutex
	path string
}

// NewResolver creates a resolver persisting to the given settings.yaml path.
func NewResolver(path string) *Resolver {
	return &Resolver{path: path}
}

// Path returns the location of the persisted document.
func (r *Resolver) Path() string {
	return r.path
}

// Resolve produces a fresh effective-settings snapshot plus any recoverable
// warnings (a corrupt persisted document falls back to defaults rather than
// failing the caller). Calling Resolve twice without an intervening Update
// or Reset yields identical output.
func (r *Resolver) Resolve() (*Effective, []string) {
	var warnings []string

	tree := Defaults()

	persisted, err := r.loadPersisted()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("settings document ignored: %v", err))
	} else if persisted != nil {
		tree = Merge(tree, persisted)
	}

	env, envWarnings := envOverrides()
	warnings = append(warnings, envWarnings...)
	if len(env) > 0 {
		tree = Merge(tree, env)
	}

	eff, err := decodeEffective(tree)
	if err != nil {
		// The defaults always decode; this can only happen when the persisted
		// document smuggled in an incompatible shape. Fail closed.
		warnings = append(warnings, fmt.Sprintf("settings tree malformed, using defaults: %v", err))
		eff, _ = decodeEffective(Merge(Defaults(), env))
	}
	return eff, warnings
}

// Update deep-merges partial into the persisted document, writes it
// atomically, and returns the new effective snapshot. Environment overrides
// still apply on top of the result and are never written to disk.
func (r *Resolver) Update(partial map[string]any) (*Effective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, err := r.loadPersisted()
	if err != nil {
		// A corrupt document is replaced rather than merged into.
		base = nil
	}
	if base == nil {
		base = map[string]any{}
	}
	merged := Merge(base, partial)

	if err := r.writePersisted(merged); err != nil {
		return nil, err
	}
	eff, _ := r.Resolve()
	return eff, nil
}

// Reset discards the persisted document, returning the resolver to built-in
// defaults (environment overrides still apply on top).
func (r *Resolver) Reset() (*Effective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove settings document: %w", err)
	}
	eff, _ := r.Resolve()
	return eff, nil
}

// loadPersisted reads the settings document. A missing file is not an error;
// malformed yaml is.
func (r *Resolver) loadPersisted() (map[string]any, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(r.path), err)
	}
	return tree, nil
}

// writePersisted writes the document via temp file + rename so concurrent
// readers see either the old document or the new one, never a torn write.
func (r *Resolver) writePersisted(tree map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// envOverrides builds the override tree from SERENDIPITY_* variables.
// Unparseable numeric values are skipped with a warning instead of shadowing
// the persisted value with garbage.
func envOverrides() (map[string]any, []string) {
	tree := map[string]any{}
	var warnings []string

	if v := os.Getenv(EnvModel); v != "" {
		tree["model"] = v
	}
	if v := os.Getenv(EnvProfileDir); v != "" {
		tree["profile"] = map[string]any{"dir": v}
	}
	for _, num := range []struct {
		env string
		key string
	}{
		{EnvRoundSize, "round_size"},
		{EnvPort, "port"},
		{EnvThinkingBudget, "thinking_budget"},
	} {
		v := os.Getenv(num.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not an integer, ignored", num.env, v))
			continue
		}
		tree[num.key] = n
	}
	return tree, warnings
}
