package models

import (
	"fmt"
	"strings"
)

// Page is the extracted text of a single PDF page.
// Offset is the rune offset of the page in the document text.
type Page struct {
	Number int
	Text   string
	Offset int
}

// Document is the text of an uploaded PDF, pages in document order.
type Document struct {
	Filename string
	Pages    []Page
	Text     string
}

// PageAt returns the number of the page containing the rune offset, 0 if there are no pages.
func (d *Document) PageAt(offset int) int {
	page := 0
	for _, p := range d.Pages {
		if p.Text == "" {
			continue
		}
		if p.Offset > offset {
			break
		}
		page = p.Number
	}
	return page
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
	// Start and End are rune offsets into the document text.
	Start int
	End   int
}

// ScoredChunk is a chunk returned by a similarity query.
type ScoredChunk struct {
	Chunk
	Similarity float32
}

// TokenUsage is what the backend reported for one generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u TokenUsage) String() string {
	return fmt.Sprintf("Tokens Used: %d\n\tPrompt Tokens: %d\n\tCompletion Tokens: %d",
		u.TotalTokens, u.PromptTokens, u.CompletionTokens)
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
	Sources []ScoredChunk
	Usage   *TokenUsage
}

// FormatSources renders retrieved chunks as a one-line provenance string.
func FormatSources(chunks []ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("chunk %d (page %d, similarity %.3f)", c.ChunkID, c.PageNumber, c.Similarity))
	}
	return strings.Join(parts, "; ")
}
