package chunker

import (
	"strings"
)

// DefaultMaxChars bounds a segment unless a paragraph alone exceeds it.
const DefaultMaxChars = 1200

// ParagraphChunker splits text on blank-line paragraph boundaries and
// greedily packs paragraphs into segments of at most maxChars bytes.
// Splitting is pure: same input, same output, no retained state.
type ParagraphChunker struct {
	maxChars int
}

func NewParagraphChunker(maxChars int) *ParagraphChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &ParagraphChunker{maxChars: maxChars}
}

// Split returns the non-empty segments of text in input order. Paragraphs
// inside a segment stay separated by a blank line. A paragraph longer than
// maxChars is emitted whole rather than truncated. Empty or all-whitespace
// input yields no segments.
func (c *ParagraphChunker) Split(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, p := range strings.Split(normalized, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}
	var segments []string
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() == 0 {
			current.WriteString(p)
			continue
		}
		if current.Len()+2+len(p) > c.maxChars {
			segments = append(segments, current.String())
			current.Reset()
			current.WriteString(p)
			continue
		}
		current.WriteString("\n\n")
		current.WriteString(p)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}
