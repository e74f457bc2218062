// Package profile handles the user's taste-profile document: the learnings
// markdown format, the incremental line diff sent to the agent between
// rounds, and a watcher that keeps the on-disk document hot.
package profile

import "strings"

// Delta is the added/removed-line summary between two versions of a profile
// document. Nil means no change worth sending.
type Delta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Diff computes the set-membership line delta between the version last sent
// to the agent and the current document. A line counts as added when it
// appears nowhere in lastSent, and removed when it appears nowhere in
// current; blank and whitespace-only lines are ignored on both sides.
//
// This is deliberately not a positional or minimal-edit diff: it is
// order-insensitive, does not detect moves, and a one-character edit shows up
// as one removed plus one added line. Deltas ride along as prompt context,
// where whole lines are the useful unit, so the coarseness is acceptable.
//
// Diff is pure. Advancing the "last sent" checkpoint after a non-nil delta is
// the caller's responsibility (the session holds the checkpoint), so a round
// retried before checkpoint advancement recomputes the same delta.
func Diff(lastSent, current string) *Delta {
	lastSet := lineSet(lastSent)
	currSet := lineSet(current)

	added := missingFrom(current, lastSet)
	removed := missingFrom(lastSent, currSet)

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	return &Delta{Added: added, Removed: removed}
}

// PromptSection renders the delta as an incremental-context block, added
// lines first, each side in its original relative order.
func (d *Delta) PromptSection() string {
	var b strings.Builder
	b.WriteString("Profile changes since the last round:\n")
	if len(d.Added) > 0 {
		b.WriteString("Added:\n")
		for _, line := range d.Added {
			b.WriteString("+ " + line + "\n")
		}
	}
	if len(d.Removed) > 0 {
		b.WriteString("Removed:\n")
		for _, line := range d.Removed {
			b.WriteString("- " + line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// missingFrom returns the non-blank lines of text absent from other,
// deduplicated, in first-occurrence order.
func missingFrom(text string, other map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		if _, ok := other[trimmed]; !ok {
			out = append(out, trimmed)
		}
	}
	return out
}

func lineSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
