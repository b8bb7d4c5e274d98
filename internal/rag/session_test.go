package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
	"pdf-rag/internal/parser/pdftest"
)

func TestSession_AskBeforeUpload(t *testing.T) {
	s := NewSession(NewRAG(testConfig(), &letterEmbedder{}, &fakeLLM{}, nil))

	_, err := s.Ask(context.Background(), "hello?")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
	assert.Nil(t, s.Summary())
}

func TestSession_UploadThenAsk(t *testing.T) {
	s := NewSession(NewRAG(testConfig(), &letterEmbedder{}, &fakeLLM{answer: "yes"}, nil))

	summary, err := s.Upload(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)
	assert.Equal(t, "letters.pdf", summary.Filename)
	require.NotNil(t, s.Summary())
	assert.True(t, s.Ready())

	resp, err := s.Ask(context.Background(), "zzz?")
	require.NoError(t, err)
	assert.Equal(t, "yes", resp.Content)

	s.Reset()
	assert.Nil(t, s.Summary())
	assert.False(t, s.Ready())
	_, err = s.Ask(context.Background(), "zzz?")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
}

func TestSession_FailedUploadLeavesNothingQueryable(t *testing.T) {
	embedder := &letterEmbedder{}
	s := NewSession(NewRAG(testConfig(), embedder, &fakeLLM{answer: "yes"}, nil))

	first, err := s.Upload(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)

	embedder.err = errors.New("API returned unexpected status code: 401: invalid api key")
	_, err = s.Upload(context.Background(), "other.pdf", pdftest.Build("another document"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAuth)

	assert.Nil(t, s.Summary(), "previous index %s must be discarded", first.ID)
	_, err = s.Ask(context.Background(), "zzz?")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
}

func TestSession_NewUploadReplacesIndex(t *testing.T) {
	s := NewSession(NewRAG(testConfig(), &letterEmbedder{}, &fakeLLM{answer: "yes"}, nil))

	first, err := s.Upload(context.Background(), "letters.pdf", twoChunkPDF())
	require.NoError(t, err)
	second, err := s.Upload(context.Background(), "other.pdf", pdftest.Build("another document"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "other.pdf", s.Summary().Filename)
}
