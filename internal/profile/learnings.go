package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Learning is one entry of the profile document: a titled like or dislike.
// IDs are content-derived so they stay stable across reserialization and
// change when the entry is edited.
type Learning struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "like" or "dislike"
	Title   string `json:"title"`
	Content string `json:"content"`
}

// LearningID derives the stable short ID for a learning's title and content.
func LearningID(title, content string) string {
	sum := sha256.Sum256([]byte(title + ":" + content))
	return hex.EncodeToString(sum[:])[:8]
}

// ParseLearnings parses the profile markdown document:
//
//	# My Discovery Learnings
//
//	## Likes
//
//	### Title
//	Content...
//
//	## Dislikes
//	...
//
// Section headers containing "dislike" map to dislikes; other "like"
// sections map to likes; unknown sections are skipped.
func ParseLearnings(markdown string) []Learning {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	var (
		learnings    []Learning
		currentType  string
		currentTitle string
		contentLines []string
	)

	flush := func() {
		if currentTitle != "" && currentType != "" {
			content := strings.TrimSpace(strings.Join(contentLines, "\n"))
			learnings = append(learnings, Learning{
				ID:      LearningID(currentTitle, content),
				Type:    currentType,
				Title:   currentTitle,
				Content: content,
			})
		}
		currentTitle = ""
		contentLines = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		stripped := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(stripped, "### "):
			flush()
			currentTitle = strings.TrimSpace(stripped[4:])
		case strings.HasPrefix(stripped, "## "):
			flush()
			section := strings.ToLower(strings.TrimSpace(stripped[3:]))
			switch {
			case strings.Contains(section, "dislike"):
				currentType = "dislike"
			case strings.Contains(section, "like"):
				currentType = "like"
			default:
				currentType = ""
			}
		case strings.HasPrefix(stripped, "# "):
			// Document title, skip.
		default:
			if currentTitle != "" {
				contentLines = append(contentLines, line)
			}
		}
	}
	flush()

	return learnings
}

// SerializeLearnings renders learnings back to the canonical markdown
// layout, likes before dislikes.
func SerializeLearnings(learnings []Learning) string {
	var likes, dislikes []Learning
	for _, l := range learnings {
		if l.Type == "dislike" {
			dislikes = append(dislikes, l)
		} else {
			likes = append(likes, l)
		}
	}

	var b strings.Builder
	b.WriteString("# My Discovery Learnings\n\n## Likes\n\n")
	for _, l := range likes {
		fmt.Fprintf(&b, "### %s\n%s\n\n", l.Title, l.Content)
	}
	b.WriteString("## Dislikes\n")
	for _, l := range dislikes {
		fmt.Fprintf(&b, "\n### %s\n%s\n", l.Title, l.Content)
	}
	return b.String()
}

// AddLearning appends a new entry and returns the extended list.
func AddLearning(learnings []Learning, learningType, title, content string) []Learning {
	return append(learnings, Learning{
		ID:      LearningID(title, content),
		Type:    learningType,
		Title:   title,
		Content: content,
	})
}

// DeleteLearning removes the entry with the given ID, if present.
func DeleteLearning(learnings []Learning, id string) []Learning {
	out := learnings[:0:0]
	for _, l := range learnings {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}
