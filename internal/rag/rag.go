package rag

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// RAG runs the build phase (PDF to knowledge base) and hands out knowledge bases for the query phase.
type RAG struct {
	cfg      *config.Config
	parser   parser.Parser
	embedder embeddings.Embedder
	answerer *Answerer
	usage    *llmservice.UsageRecorder
}

func NewRAG(cfg *config.Config, embedder embeddings.Embedder, llm llms.Model, usage *llmservice.UsageRecorder) *RAG {
	return &RAG{
		cfg:      cfg,
		parser:   parser.NewParser(cfg),
		embedder: embedder,
		answerer: NewAnswerer(llm, cfg.LLM.Temperature),
		usage:    usage,
	}
}

// NewRAGFromConfig wires the backends selected by the configuration.
func NewRAGFromConfig(cfg *config.Config) (*RAG, error) {
	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	usage := llmservice.NewUsageRecorder()
	llm, err := llmservice.NewLLM(cfg, usage)
	if err != nil {
		return nil, err
	}
	return NewRAG(cfg, embedder, llm, usage), nil
}

// BuildSummary describes a knowledge base that is ready for questions.
type BuildSummary struct {
	ID         string        `json:"id"`
	Filename   string        `json:"filename"`
	Pages      int           `json:"pages"`
	Characters int           `json:"characters"`
	Chunks     int           `json:"chunks"`
	Dimension  int           `json:"dimension"`
	Duration   time.Duration `json:"duration"`
}

// KnowledgeBase is the index built from one document plus the means to answer questions about it.
type KnowledgeBase struct {
	rag     *RAG
	index   *chromemdb.KnowledgeIndex
	Summary BuildSummary
}

// Build extracts, chunks and embeds the PDF and indexes the chunks.
// Any failure aborts the build and no knowledge base is returned.
func (r *RAG) Build(ctx context.Context, filename string, data []byte) (*KnowledgeBase, error) {
	start := time.Now()

	doc, chunks, err := r.parser.ParsePDF(filename, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" || len(chunks) == 0 {
		return nil, models.Errorf(models.KindEmptyContent, "build knowledge base", "%s has no extractable text", filename)
	}

	vectors, err := embedding.GenerateEmbedding(ctx, r.embedder, chunks)
	if err != nil {
		return nil, err
	}

	index, err := chromemdb.NewKnowledgeIndex(ctx, filename, chunks, vectors)
	if err != nil {
		return nil, err
	}

	kb := &KnowledgeBase{
		rag:   r,
		index: index,
		Summary: BuildSummary{
			ID:         index.ID(),
			Filename:   filename,
			Pages:      len(doc.Pages),
			Characters: len([]rune(doc.Text)),
			Chunks:     index.Len(),
			Dimension:  index.Dimension(),
			Duration:   time.Since(start),
		},
	}
	log.Info().
		Str("file", filename).
		Str("index", kb.Summary.ID).
		Int("chunks", kb.Summary.Chunks).
		Dur("duration", kb.Summary.Duration).
		Msg("Knowledge base ready")
	return kb, nil
}

// Query answers a question from the k chunks nearest to it.
// Failures leave the knowledge base usable.
func (kb *KnowledgeBase) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.Errorf(models.KindInvalidInput, "query", "question is empty")
	}
	r := kb.rag

	queryEmbedding, err := embedding.EmbedQuestion(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}

	retrieved, err := kb.index.Query(ctx, queryEmbedding, r.cfg.RAG.RetrievalK)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("retrieved", len(retrieved)).Str("sources", models.FormatSources(retrieved)).Msg("Retrieved chunks")

	// drop usage left over from a failed call
	r.usage.Take()
	answer, err := r.answerer.Answer(ctx, query, retrieved)
	if err != nil {
		return nil, err
	}
	log.Info().Str("query", query).Str("answer", helper.Truncate(answer, 80)).Msg("Answered")

	return &models.PromptResponse{
		Query:   query,
		Source:  models.FormatSources(retrieved),
		Content: answer,
		Sources: retrieved,
		Usage:   r.usage.Take(),
	}, nil
}

// Close releases the index.
func (kb *KnowledgeBase) Close() error {
	return kb.index.Close()
}
