package parser

import (
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

type Parser interface {
	ParsePDF(filename string, data []byte) (*models.Document, []models.Chunk, error)
}

type ParserConfig struct {
	Config *config.Config
}

func NewParser(cfg *config.Config) *ParserConfig {
	// if config is nil, use default values
	if cfg == nil {
		cfg = config.Default()
	}
	return &ParserConfig{Config: cfg}
}

// ParsePDF extracts the document text and splits it into chunks tagged with their page number.
func (p *ParserConfig) ParsePDF(filename string, data []byte) (*models.Document, []models.Chunk, error) {
	doc, err := ExtractPDFBytes(data)
	if err != nil {
		return nil, nil, err
	}
	doc.Filename = filename

	chunks, err := p.getChunks(doc)
	if err != nil {
		return nil, nil, err
	}
	if e := log.Debug(); e.Enabled() {
		e.Str("file", filename).
			Int("pages", len(doc.Pages)).
			Int("chars", len([]rune(doc.Text))).
			Int("chunks", len(chunks)).
			Bool("lossless", JoinChunks(chunks) == doc.Text).
			Msg("Parsed document")
	}
	return doc, chunks, nil
}

// get chunks from the document text, page numbers taken from the chunk start
func (p *ParserConfig) getChunks(doc *models.Document) ([]models.Chunk, error) {
	chunks, err := SplitText(doc.Text, OptionsFromConfig(p.Config))
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].PageNumber = doc.PageAt(chunks[i].Start)
	}
	return chunks, nil
}

// SplitOptions configures SplitText. Sizes are counted in characters.
type SplitOptions struct {
	Separator    rune
	ChunkSize    int
	ChunkOverlap int
}

func OptionsFromConfig(cfg *config.Config) SplitOptions {
	return SplitOptions{
		Separator:    cfg.RAG.SeparatorRune(),
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	}
}

func (o SplitOptions) validate() error {
	if o.ChunkSize <= 0 {
		return models.Errorf(models.KindInvalidInput, "split text", "chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return models.Errorf(models.KindInvalidInput, "split text", "chunk overlap must be in [0, %d), got %d", o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// SplitText cuts text into chunks of at most ChunkSize characters.
//
// A chunk ends right after the last separator inside its window, or at exactly
// ChunkSize characters when the window holds no separator past the end of the
// previous chunk. Every chunk therefore ends beyond its predecessor. The next
// chunk starts ChunkOverlap characters before the previous end, but always at
// least one character after the previous start. Empty text yields no chunks.
func SplitText(text string, opts SplitOptions) ([]models.Chunk, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []models.Chunk
	prevEnd := 0
	for start := 0; start < n; {
		end := min(start+opts.ChunkSize, n)
		if end < n {
			// separators in the overlap were already a cut point of the previous chunk
			from := max(prevEnd, start)
			if i := lastIndexRune(runes[from:end], opts.Separator); i >= 0 {
				end = from + i + 1
			}
		}

		chunks = append(chunks, models.Chunk{
			Content: string(runes[start:end]),
			ChunkID: len(chunks) + 1,
			Start:   start,
			End:     end,
		})
		if end == n {
			break
		}
		prevEnd = end
		start = max(end-opts.ChunkOverlap, start+1)
	}
	return chunks, nil
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// JoinChunks returns the complete content from chunks in document order,
// dropping the part of each chunk that overlaps its predecessor.
func JoinChunks(chunks []models.Chunk) string {
	var content strings.Builder
	prevEnd := 0
	for _, chunk := range chunks {
		runes := []rune(chunk.Content)
		skip := max(prevEnd-chunk.Start, 0)
		if skip < len(runes) {
			content.WriteString(string(runes[skip:]))
		}
		prevEnd = max(prevEnd, chunk.End)
	}
	return content.String()
}
