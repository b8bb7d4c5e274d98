package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

type stubAsker struct {
	resp *models.PromptResponse
	err  error
	ctxs []context.Context
}

func (s *stubAsker) Ask(ctx context.Context, question string) (*models.PromptResponse, error) {
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return nil, s.err
	}
	resp := *s.resp
	resp.Query = question
	return &resp, nil
}

// collect runs cmd and returns the answerMsg it produces, flattening batches.
func collect(t *testing.T, cmd tea.Cmd) answerMsg {
	t.Helper()
	require.NotNil(t, cmd)
	switch msg := cmd().(type) {
	case answerMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if am, ok := c().(answerMsg); ok {
				return am
			}
		}
	}
	t.Fatal("command produced no answer")
	return answerMsg{}
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func submit(m Model, question string) (Model, tea.Cmd) {
	m.input.SetValue(question)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_AsksInBackground(t *testing.T) {
	asker := &stubAsker{resp: &models.PromptResponse{
		Content: "The answer is forty-two.",
		Sources: []models.ScoredChunk{{Chunk: models.Chunk{ChunkID: 1, PageNumber: 2, Content: "forty-two"}, Similarity: 0.8}},
		Usage:   &models.TokenUsage{TotalTokens: 12},
	}}
	m := sized(New(asker, "doc.pdf: 2 pages, 3 chunks"))

	m, cmd := submit(m, "  what is it?  ")
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())
	assert.Empty(t, asker.ctxs, "question must not run inside Update")

	msg := collect(t, cmd)
	assert.Equal(t, "what is it?", msg.question)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	assert.False(t, m.failed)
	assert.Contains(t, m.status, "12 tokens")
	view := m.View()
	assert.Contains(t, view, "forty-two")
	assert.Contains(t, view, "doc.pdf: 2 pages")
}

func TestModel_ErrorKeepsSessionUsable(t *testing.T) {
	asker := &stubAsker{err: models.Errorf(models.KindBackend, "answer", "quota exceeded")}
	m := sized(New(asker, "doc.pdf"))

	m, cmd := submit(m, "why?")
	next, _ := m.Update(collect(t, cmd))
	m = next.(Model)
	assert.True(t, m.failed)
	assert.Contains(t, m.status, "backend returned an error")

	asker.err = nil
	asker.resp = &models.PromptResponse{Content: "better now"}
	m, cmd = submit(m, "again?")
	next, _ = m.Update(collect(t, cmd))
	m = next.(Model)
	assert.False(t, m.failed)
	assert.Contains(t, m.View(), "better now")
}

func TestModel_CtrlCCancelsRunningQuestion(t *testing.T) {
	asker := &stubAsker{err: errors.New("unused")}
	m := sized(New(asker, "doc.pdf"))

	m, cmd := submit(m, "slow question")
	require.True(t, m.busy)

	next, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.Nil(t, quit)
	assert.False(t, m.busy)
	assert.Equal(t, "Cancelled.", m.status)

	late := collect(t, cmd)
	require.Len(t, asker.ctxs, 1)
	assert.ErrorIs(t, asker.ctxs[0].Err(), context.Canceled)

	next, _ = m.Update(late)
	assert.Equal(t, "Cancelled.", next.(Model).status, "late answers are dropped")

	_, quit = next.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, quit)
	assert.Equal(t, tea.QuitMsg{}, quit())
}

func TestModel_IgnoresEmptyAndConcurrentQuestions(t *testing.T) {
	m := sized(New(&stubAsker{resp: &models.PromptResponse{}}, "doc.pdf"))

	m, cmd := submit(m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, m.busy)

	m, _ = submit(m, "first")
	require.True(t, m.busy)
	seq := m.seq
	m, cmd = submit(m, "second")
	assert.Nil(t, cmd)
	assert.Equal(t, seq, m.seq)
}
