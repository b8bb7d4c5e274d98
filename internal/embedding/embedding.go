package embedding

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

// NewEmbedder creates the embedder selected by embedding_backend.
// The same embedder must serve both index construction and question embedding.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbedLLM.Backend {
	case config.BackendHosted:
		return NewOpenAIEmbedder(cfg)
	case config.BackendLocal:
		return NewOllamaEmbedder(cfg)
	default:
		return nil, models.Errorf(models.KindInvalidInput, "create embedder", "unknown embedding backend %q", cfg.EmbedLLM.Backend)
	}
}

// NewOpenAIEmbedder creates an embedder backed by the hosted embeddings API
func NewOpenAIEmbedder(cfg *config.Config) (*embeddings.EmbedderImpl, error) {
	LLMconfig := cfg.EmbedLLM
	log.Debug().Interface("config", map[string]string{
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Creating hosted embedder")

	key := cfg.Credential(LLMconfig)
	if key == "" {
		return nil, models.Errorf(models.KindAuth, "create embedder", "hosted embeddings require api_credential")
	}

	llm, err := openai.New(
		openai.WithBaseURL(LLMconfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(LLMconfig.Model),
		openai.WithHTTPClient(llmservice.NewHTTPClient(cfg.RequestTimeout)),
	)
	if err != nil {
		return nil, llmservice.ClassifyError("create embedder", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.RAG.EmbeddingBatchSize))
	if err != nil {
		return nil, llmservice.ClassifyError("create embedder", err)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.Config) (*embeddings.EmbedderImpl, error) {
	LLMconfig := cfg.EmbedLLM
	log.Debug().Interface("config", map[string]string{
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Creating local embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(LLMconfig.BaseURL),
		ollama.WithModel(LLMconfig.Model),
		ollama.WithHTTPClient(llmservice.NewHTTPClient(cfg.RequestTimeout)),
	)
	if err != nil {
		return nil, llmservice.ClassifyError("create embedder", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.RAG.EmbeddingBatchSize))
	if err != nil {
		return nil, llmservice.ClassifyError("create embedder", err)
	}
	return embedder, nil
}

// GenerateEmbedding embeds every chunk, preserving chunk order.
// All vectors must share one dimension.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	const op = "embed chunks"
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, llmservice.ClassifyError(op, err)
	}
	if len(vectors) != len(chunks) {
		return nil, models.Errorf(models.KindBackend, op, "backend returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, models.Errorf(models.KindBackend, op, "vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	log.Debug().Int("vectors", len(vectors)).Int("dimension", dim).Msg("Generated embeddings")
	return vectors, nil
}

// EmbedQuestion embeds a question with the embedder used for the index.
func EmbedQuestion(ctx context.Context, embedder embeddings.Embedder, question string) ([]float32, error) {
	vector, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, llmservice.ClassifyError("embed question", err)
	}
	if len(vector) == 0 {
		return nil, models.Errorf(models.KindBackend, "embed question", "backend returned an empty vector")
	}
	return vector, nil
}
