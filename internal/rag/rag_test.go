package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/config"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser/pdftest"
)

// letterEmbedder embeds text as letter frequencies plus a constant component.
type letterEmbedder struct {
	mu       sync.Mutex
	docCalls int
	err      error
	queryErr error
}

func letterVector(text string) []float32 {
	v := make([]float32, 27)
	v[26] = 0.01
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return letterVector(text), nil
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				prompt.WriteString(tc.Text)
			}
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt.String())
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RAG.ChunkSize = 40
	cfg.RAG.ChunkOverlap = 0
	return cfg
}

func twoChunkPDF() []byte {
	return pdftest.Build(strings.Repeat("a", 30), strings.Repeat("z", 30))
}

func TestBuildAndQuery_FewerChunksThanK(t *testing.T) {
	cfg := testConfig()
	require.Equal(t, 4, cfg.RAG.RetrievalK)

	llm := &fakeLLM{answer: "It is about z."}
	r := NewRAG(cfg, &letterEmbedder{}, llm, llmservice.NewUsageRecorder())

	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)
	require.Equal(t, 2, kb.Summary.Chunks)
	assert.Equal(t, 2, kb.Summary.Pages)
	assert.Equal(t, 27, kb.Summary.Dimension)
	assert.NotEmpty(t, kb.Summary.ID)

	resp, err := kb.Query(context.Background(), "zzz?")
	require.NoError(t, err)
	assert.Equal(t, "It is about z.", resp.Content)
	assert.Equal(t, "zzz?", resp.Query)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, 2, resp.Sources[0].ChunkID)
	assert.GreaterOrEqual(t, resp.Sources[0].Similarity, resp.Sources[1].Similarity)
	assert.NotEqual(t, resp.Sources[0].ChunkID, resp.Sources[1].ChunkID)
	assert.NotEmpty(t, resp.Source)
}

func TestQuery_Deterministic(t *testing.T) {
	r := NewRAG(testConfig(), &letterEmbedder{}, &fakeLLM{answer: "ok"}, nil)
	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)

	first, err := kb.Query(context.Background(), "a question about aaa")
	require.NoError(t, err)
	second, err := kb.Query(context.Background(), "a question about aaa")
	require.NoError(t, err)
	assert.Equal(t, first.Sources, second.Sources)
}

func TestBuild_EmptyDocumentSkipsEmbedding(t *testing.T) {
	embedder := &letterEmbedder{}
	r := NewRAG(testConfig(), embedder, &fakeLLM{}, nil)

	kb, err := r.Build(context.Background(), "blank.pdf", pdftest.Build(""))
	require.Error(t, err)
	assert.Nil(t, kb)
	assert.ErrorIs(t, err, models.ErrEmptyContent)
	assert.Zero(t, embedder.docCalls)
}

func TestBuild_FormatErrorSkipsEmbedding(t *testing.T) {
	embedder := &letterEmbedder{}
	r := NewRAG(testConfig(), embedder, &fakeLLM{}, nil)

	_, err := r.Build(context.Background(), "broken.pdf", []byte("this is not a pdf"))
	require.Error(t, err)
	assert.Equal(t, models.KindFormat, models.KindOf(err))
	assert.Zero(t, embedder.docCalls)
}

func TestBuild_EmbeddingAuthErrorAborts(t *testing.T) {
	embedder := &letterEmbedder{err: errors.New("API returned unexpected status code: 401: Incorrect API key provided")}
	r := NewRAG(testConfig(), embedder, &fakeLLM{}, nil)

	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.Error(t, err)
	assert.Nil(t, kb)
	assert.ErrorIs(t, err, models.ErrAuth)
}

func TestQuery_BackendErrorKeepsKnowledgeBase(t *testing.T) {
	llm := &fakeLLM{answer: "fine", err: errors.New("API returned unexpected status code: 429: quota exceeded")}
	r := NewRAG(testConfig(), &letterEmbedder{}, llm, nil)

	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)

	_, err = kb.Query(context.Background(), "zzz")
	require.Error(t, err)
	assert.Equal(t, models.KindBackend, models.KindOf(err))

	llm.mu.Lock()
	llm.err = nil
	llm.mu.Unlock()

	resp, err := kb.Query(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Content)
}

func TestQuery_EmptyQuestion(t *testing.T) {
	llm := &fakeLLM{answer: "x"}
	r := NewRAG(testConfig(), &letterEmbedder{}, llm, nil)
	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)

	_, err = kb.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Zero(t, llm.calls())
}

func TestQuery_QuestionEmbeddingNetworkError(t *testing.T) {
	embedder := &letterEmbedder{}
	r := NewRAG(testConfig(), embedder, &fakeLLM{answer: "x"}, nil)
	kb, err := r.Build(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)

	embedder.queryErr = errors.New(`Post "http://localhost:11434/api/embed": dial tcp 127.0.0.1:11434: connect: connection refused`)
	_, err = kb.Query(context.Background(), "zzz")
	assert.ErrorIs(t, err, models.ErrNetwork)
}
