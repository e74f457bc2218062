package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/serendipitylabs/serendipity/internal/session"
)

const (
	outputOpen  = "<output>"
	outputClose = "</output>"
)

// Extraction failures are distinguished so callers can tell "the agent never
// produced a block" from "the agent produced an ambiguous answer".
var (
	ErrNoBlock        = errors.New("no output block in agent text")
	ErrMultipleBlocks = errors.New("multiple output blocks in agent text")
)

// outputDoc is the JSON document inside the output block.
type outputDoc struct {
	BatchTitle      string                   `json:"batch_title"`
	Recommendations []session.Recommendation `json:"recommendations"`
	Pairings        []session.Pairing        `json:"pairings"`
}

// extractOutputBlock finds the single delimited block in free-form agent
// text. Delimiter scanning is a separate stage from JSON decoding so the two
// failure modes stay distinguishable.
func extractOutputBlock(text string) (string, error) {
	first := strings.Index(text, outputOpen)
	if first < 0 {
		return "", ErrNoBlock
	}
	if strings.Index(text[first+len(outputOpen):], outputOpen) >= 0 {
		return "", ErrMultipleBlocks
	}
	rest := text[first+len(outputOpen):]
	end := strings.Index(rest, outputClose)
	if end < 0 {
		return "", ErrNoBlock
	}
	return strings.TrimSpace(rest[:end]), nil
}

// parseResultText turns the agent's free text into a validated complete
// payload. Items missing a URL or title are dropped; the count of dropped
// items is returned for logging.
func parseResultText(text string) (*CompletePayload, int, error) {
	block, err := extractOutputBlock(text)
	if err != nil {
		return nil, 0, err
	}

	var doc outputDoc
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return nil, 0, fmt.Errorf("decoding output block: %w", err)
	}

	kept := doc.Recommendations[:0:0]
	dropped := 0
	for _, rec := range doc.Recommendations {
		if strings.TrimSpace(rec.URL) == "" || strings.TrimSpace(rec.Title) == "" {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}

	return &CompletePayload{
		Success:         true,
		BatchTitle:      doc.BatchTitle,
		Recommendations: kept,
		Pairings:        doc.Pairings,
	}, dropped, nil
}

// validateComplete applies the same item validation to a pre-structured
// complete payload arriving straight off the transport.
func validateComplete(p *CompletePayload) int {
	kept := p.Recommendations[:0:0]
	dropped := 0
	for _, rec := range p.Recommendations {
		if strings.TrimSpace(rec.URL) == "" || strings.TrimSpace(rec.Title) == "" {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	p.Recommendations = kept
	return dropped
}
