package rag

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// Builder is the build phase of the pipeline.
type Builder interface {
	Build(ctx context.Context, filename string, data []byte) (*KnowledgeBase, error)
}

// Session owns the knowledge base of the current document. Calls run one at a time.
type Session struct {
	mu      sync.Mutex
	builder Builder
	kb      *KnowledgeBase
}

func NewSession(builder Builder) *Session {
	return &Session{builder: builder}
}

// Upload replaces the current knowledge base. The previous one is discarded
// before the build starts, so a failed build leaves nothing to query.
func (s *Session) Upload(ctx context.Context, filename string, data []byte) (*BuildSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discard()
	kb, err := s.builder.Build(ctx, filename, data)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("Build failed")
		return nil, err
	}
	s.kb = kb
	summary := kb.Summary
	return &summary, nil
}

// Ask answers a question about the current document.
func (s *Session) Ask(ctx context.Context, question string) (*models.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kb == nil {
		return nil, models.Errorf(models.KindEmptyContent, "ask", "no document has been loaded")
	}
	resp, err := s.kb.Query(ctx, question)
	if err != nil {
		log.Error().Err(err).Msg("Question failed")
		return nil, err
	}
	return resp, nil
}

// Reset discards the current knowledge base.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discard()
}

// Summary returns the current knowledge base summary, nil when none is loaded.
func (s *Session) Summary() *BuildSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kb == nil {
		return nil
	}
	summary := s.kb.Summary
	return &summary
}

// Ready reports whether a knowledge base is loaded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kb != nil
}

func (s *Session) discard() {
	if s.kb == nil {
		return
	}
	if err := s.kb.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing knowledge base")
	}
	s.kb = nil
}
