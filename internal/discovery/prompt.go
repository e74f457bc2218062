package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/settings"
)

// promptInput collects everything one round's prompt is built from.
type promptInput struct {
	Effective  *settings.Effective
	Approaches []string
	Count      int
	Delta      *profile.Delta
	Feedback   map[string]int
	Context    []string
	Recent     []string
	Directives string
}

// buildPromptSections renders the round prompt as an ordered list of
// sections. Sections that have nothing to say are omitted rather than
// rendered empty.
func buildPromptSections(in promptInput) []string {
	var sections []string

	sections = append(sections, strings.TrimSpace(`
You are a discovery engine. Your job is to surface content the user would not
have found on their own but is likely to love, based on their profile and the
feedback they have given so far. Prefer depth and surprise over popularity.`))

	for _, ctx := range in.Context {
		if strings.TrimSpace(ctx) != "" {
			sections = append(sections, ctx)
		}
	}

	if in.Delta != nil {
		sections = append(sections, in.Delta.PromptSection())
	}

	if sec := feedbackSection(in.Feedback); sec != "" {
		sections = append(sections, sec)
	}

	if len(in.Recent) > 0 {
		var b strings.Builder
		b.WriteString("Already shown this session, do not repeat:\n")
		for _, url := range in.Recent {
			fmt.Fprintf(&b, "- %s\n", url)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if sec := approachSection(in.Effective, in.Approaches); sec != "" {
		sections = append(sections, sec)
	}
	if sec := mediaSection(in.Effective); sec != "" {
		sections = append(sections, sec)
	}
	if sec := pairingSection(in.Effective); sec != "" {
		sections = append(sections, sec)
	}

	if strings.TrimSpace(in.Directives) != "" {
		sections = append(sections, "Steering for this round:\n"+strings.TrimSpace(in.Directives))
	}

	sections = append(sections, outputContract(in.Count))
	return sections
}

func feedbackSection(feedback map[string]int) string {
	var liked, disliked []string
	for key, rating := range feedback {
		switch {
		case rating >= 4:
			liked = append(liked, key)
		case rating <= 2:
			disliked = append(disliked, key)
		}
	}
	if len(liked) == 0 && len(disliked) == 0 {
		return ""
	}
	sort.Strings(liked)
	sort.Strings(disliked)

	var b strings.Builder
	b.WriteString("Feedback so far this session:\n")
	for _, key := range liked {
		fmt.Fprintf(&b, "Liked: %s\n", key)
	}
	for _, key := range disliked {
		fmt.Fprintf(&b, "Disliked: %s\n", key)
	}
	return strings.TrimRight(b.String(), "\n")
}

func approachSection(eff *settings.Effective, requested []string) string {
	if len(requested) == 0 {
		requested = eff.EnabledApproaches()
		sort.Strings(requested)
	}
	if len(requested) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Split recommendations across these approaches:\n")
	for _, name := range requested {
		a, ok := eff.Approaches[name]
		if !ok {
			// Unknown approach names pass through as opaque labels.
			fmt.Fprintf(&b, "- %s\n", name)
			continue
		}
		if a.PromptHint != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, a.PromptHint)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func mediaSection(eff *settings.Effective) string {
	var names []string
	for name, m := range eff.Media {
		if m.Enabled {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Allowed media types:\n")
	for _, name := range names {
		m := eff.Media[name]
		if m.PromptHint != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, m.PromptHint)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func pairingSection(eff *settings.Effective) string {
	enabled := eff.EnabledPairings()
	if len(enabled) == 0 {
		return ""
	}
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Include one pairing per type where it genuinely fits:\n")
	for _, name := range names {
		p := enabled[name]
		if p.PromptHint != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, p.PromptHint)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func outputContract(count int) string {
	return fmt.Sprintf(strings.TrimSpace(`
Produce exactly %d recommendations. When you are done, emit exactly one block
of the following form and nothing after it:

<output>
{
  "batch_title": "short evocative title for this batch",
  "recommendations": [
    {"url": "...", "title": "...", "reason": "...", "media_type": "...", "approach": "..."}
  ],
  "pairings": [
    {"type": "...", "title": "...", "content": "...", "url": "..."}
  ]
}
</output>

Every recommendation must have a url and a title. The reason should say why
this specific user will care, in one or two sentences.`), count)
}
