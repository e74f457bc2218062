package discovery

import (
	"errors"
	"testing"

	"github.com/serendipitylabs/serendipity/internal/session"
)

func TestExtractOutputBlock(t *testing.T) {
	text := "Some preamble.\n<output>\n{\"recommendations\":[]}\n</output>\nTrailing chatter."
	block, err := extractOutputBlock(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if block != `{"recommendations":[]}` {
		t.Errorf("block = %q", block)
	}
}

func TestExtractNoBlock(t *testing.T) {
	for _, text := range []string{
		"no delimiters at all",
		"<output> opened but never closed",
		"</output> closed but never opened",
	} {
		if _, err := extractOutputBlock(text); !errors.Is(err, ErrNoBlock) {
			t.Errorf("%q: expected ErrNoBlock, got %v", text, err)
		}
	}
}

func TestExtractMultipleBlocks(t *testing.T) {
	text := "<output>{}</output> and again <output>{}</output>"
	if _, err := extractOutputBlock(text); !errors.Is(err, ErrMultipleBlocks) {
		t.Errorf("expected ErrMultipleBlocks, got %v", err)
	}
}

func TestParseResultText(t *testing.T) {
	text := `Here you go.
<output>
{
  "batch_title": "Quiet Machines",
  "recommendations": [
    {"url": "https://a", "title": "A", "reason": "r", "media_type": "article", "approach": "convergent"},
    {"url": "", "title": "missing url"},
    {"url": "https://c", "title": ""}
  ],
  "pairings": [{"type": "music", "title": "M", "content": "c"}]
}
</output>`

	payload, dropped, err := parseResultText(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !payload.Success {
		t.Error("parsed payload must be marked successful")
	}
	if payload.BatchTitle != "Quiet Machines" {
		t.Errorf("title = %q", payload.BatchTitle)
	}
	if len(payload.Recommendations) != 1 || payload.Recommendations[0].URL != "https://a" {
		t.Errorf("recommendations = %+v", payload.Recommendations)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(payload.Pairings) != 1 {
		t.Errorf("pairings = %+v", payload.Pairings)
	}
}

func TestParseResultTextBadJSON(t *testing.T) {
	if _, _, err := parseResultText("<output>{not json}</output>"); err == nil {
		t.Error("invalid JSON inside the block must fail")
	}
}

func TestValidateComplete(t *testing.T) {
	p := &CompletePayload{
		Recommendations: []session.Recommendation{
			{URL: "https://keep", Title: "Keep"},
			{URL: "   ", Title: "Blank URL"},
			{URL: "https://no-title"},
		},
	}
	if dropped := validateComplete(p); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(p.Recommendations) != 1 || p.Recommendations[0].URL != "https://keep" {
		t.Errorf("kept = %+v", p.Recommendations)
	}
}
