package discovery

import (
	"strings"
	"testing"

	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/settings"
)

func testEffective(t *testing.T) *settings.Effective {
	t.Helper()
	resolver := settings.NewResolver(t.TempDir() + "/settings.yaml")
	eff, _ := resolver.Resolve()
	return eff
}

func TestPromptIncludesCountAndContract(t *testing.T) {
	sections := buildPromptSections(promptInput{Effective: testEffective(t), Count: 7})
	joined := strings.Join(sections, "\n\n")

	if !strings.Contains(joined, "exactly 7 recommendations") {
		t.Error("count missing from output contract")
	}
	if !strings.Contains(joined, "<output>") {
		t.Error("output block schema missing")
	}
}

func TestPromptCarriesDeltaAndFeedback(t *testing.T) {
	delta := profile.Diff("old line", "new line")
	sections := buildPromptSections(promptInput{
		Effective: testEffective(t),
		Count:     5,
		Delta:     delta,
		Feedback:  map[string]int{"https://loved": 5, "https://hated": 1, "https://meh": 3},
	})
	joined := strings.Join(sections, "\n\n")

	if !strings.Contains(joined, "+ new line") || !strings.Contains(joined, "- old line") {
		t.Error("profile delta section missing")
	}
	if !strings.Contains(joined, "Liked: https://loved") {
		t.Error("liked feedback missing")
	}
	if !strings.Contains(joined, "Disliked: https://hated") {
		t.Error("disliked feedback missing")
	}
	if strings.Contains(joined, "https://meh") {
		t.Error("neutral ratings must not steer the prompt")
	}
}

func TestPromptOmitsEmptySections(t *testing.T) {
	sections := buildPromptSections(promptInput{Effective: testEffective(t), Count: 3})
	for _, sec := range sections {
		if strings.TrimSpace(sec) == "" {
			t.Error("empty section rendered")
		}
		if strings.Contains(sec, "Profile changes") {
			t.Error("delta section rendered without a delta")
		}
		if strings.Contains(sec, "Feedback so far") {
			t.Error("feedback section rendered without feedback")
		}
	}
}

func TestPromptRespectsRequestedApproaches(t *testing.T) {
	sections := buildPromptSections(promptInput{
		Effective:  testEffective(t),
		Count:      5,
		Approaches: []string{"divergent", "wildcard"},
	})
	joined := strings.Join(sections, "\n\n")

	if !strings.Contains(joined, "divergent") {
		t.Error("requested approach missing")
	}
	// Unknown approach names are opaque labels, passed through untouched.
	if !strings.Contains(joined, "wildcard") {
		t.Error("unregistered approach must still appear")
	}
}

func TestPromptListsRecentURLs(t *testing.T) {
	sections := buildPromptSections(promptInput{
		Effective: testEffective(t),
		Count:     5,
		Recent:    []string{"https://seen-1", "https://seen-2"},
	})
	joined := strings.Join(sections, "\n\n")

	if !strings.Contains(joined, "do not repeat") || !strings.Contains(joined, "https://seen-2") {
		t.Error("recent URL section missing")
	}
}

func TestPromptCarriesDirectives(t *testing.T) {
	sections := buildPromptSections(promptInput{
		Effective:  testEffective(t),
		Count:      5,
		Directives: "lean into 70s krautrock",
	})
	if !strings.Contains(strings.Join(sections, "\n\n"), "lean into 70s krautrock") {
		t.Error("steering directives missing")
	}
}
