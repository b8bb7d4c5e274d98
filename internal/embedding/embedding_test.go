package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return s.vectors, s.err
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}
	return s.vectors[0], nil
}

func hostedConfig(baseURL, key string) *config.Config {
	cfg := config.Default()
	cfg.APICredential = key
	cfg.RequestTimeout = 2 * time.Second
	cfg.EmbedLLM = config.LLMConfig{Backend: config.BackendHosted, BaseURL: baseURL, Model: config.DefaultHostedEmbeddingModel}
	return cfg
}

func TestNewEmbedder(t *testing.T) {
	_, err := NewEmbedder(hostedConfig(config.DefaultHostedBaseURL, ""))
	assert.ErrorIs(t, err, models.ErrAuth)

	e, err := NewEmbedder(hostedConfig(config.DefaultHostedBaseURL, "sk-test"))
	require.NoError(t, err)
	assert.NotNil(t, e)

	cfg := config.Default()
	cfg.EmbedLLM = config.LLMConfig{Backend: config.BackendLocal, BaseURL: config.DefaultLocalBaseURL, Model: config.DefaultLocalModel}
	e, err = NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, e)

	cfg.EmbedLLM.Backend = "cloud"
	_, err = NewEmbedder(cfg)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestGenerateEmbedding_RejectedCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	embedder, err := NewEmbedder(hostedConfig(srv.URL, "sk-wrong"))
	require.NoError(t, err)

	_, err = GenerateEmbedding(context.Background(), embedder, []models.Chunk{{ChunkID: 1, Content: "hello"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAuth)
	assert.Positive(t, hits.Load())
}

func TestGenerateEmbedding_UnreachableLocalBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.RequestTimeout = 2 * time.Second
	cfg.EmbedLLM = config.LLMConfig{Backend: config.BackendLocal, BaseURL: url, Model: config.DefaultLocalModel}
	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)

	_, err = GenerateEmbedding(context.Background(), embedder, []models.Chunk{{ChunkID: 1, Content: "hello"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNetwork)
}

func TestGenerateEmbedding_Validation(t *testing.T) {
	ctx := context.Background()
	two := []models.Chunk{{ChunkID: 1, Content: "a"}, {ChunkID: 2, Content: "b"}}

	vectors, err := GenerateEmbedding(ctx, &stubEmbedder{}, nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)

	vectors, err = GenerateEmbedding(ctx, &stubEmbedder{vectors: [][]float32{{1, 2}, {3, 4}}}, two)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vectors)

	_, err = GenerateEmbedding(ctx, &stubEmbedder{vectors: [][]float32{{1, 2}}}, two)
	assert.ErrorIs(t, err, models.ErrBackend)

	_, err = GenerateEmbedding(ctx, &stubEmbedder{vectors: [][]float32{{1, 2}, {3}}}, two)
	assert.ErrorIs(t, err, models.ErrBackend)
}

func TestEmbedQuestion(t *testing.T) {
	ctx := context.Background()

	v, err := EmbedQuestion(ctx, &stubEmbedder{vectors: [][]float32{{0.5, 0.5}}}, "why?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, v)

	_, err = EmbedQuestion(ctx, &stubEmbedder{}, "why?")
	assert.ErrorIs(t, err, models.ErrBackend)
}
