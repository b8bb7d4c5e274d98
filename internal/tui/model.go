package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

// Asker is the TUI-facing subset of the session.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.PromptResponse, error)
}

// answerMsg carries the result of question seq back to Update.
type answerMsg struct {
	seq      int
	question string
	resp     *models.PromptResponse
	err      error
}

// Model is the Bubble Tea model for the question loop.
type Model struct {
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	summary  string
	status   string
	failed   bool
	ready    bool

	busy   bool
	seq    int
	cancel context.CancelFunc

	transcript []string
}

// New creates a TUI model for a loaded document.
func New(asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your PDF and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Ctrl+C cancels a running question, or quits when idle.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case answerMsg:
		if msg.seq != m.seq {
			// a cancelled question finishing late
			return m, nil
		}
		m.finish()
		if msg.err != nil {
			m.failed = true
			m.status = llmservice.UserMessage(msg.err)
			m.transcript = append(m.transcript, renderQuestion(msg.question)+"\n"+errorStyle.Render("error: "+msg.err.Error()))
		} else {
			m.failed = false
			m.status = "Answered."
			if msg.resp.Usage != nil {
				m.status = fmt.Sprintf("Answered, %d tokens used.", msg.resp.Usage.TotalTokens)
			}
			m.transcript = append(m.transcript, renderExchange(msg.resp, m.viewport.Width))
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.busy {
				m.cancel()
				m.finish()
				m.seq++
				m.failed = true
				m.status = "Cancelled."
				return m, nil
			}
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		case tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			return m, m.start(q)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start launches the question in the background and shows the spinner.
func (m *Model) start(question string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.seq++
	m.busy = true
	m.cancel = cancel
	m.failed = false
	m.status = fmt.Sprintf("Thinking about %q", helper.Truncate(question, 40))
	return tea.Batch(m.spinner.Tick, ask(ctx, m.asker, m.seq, question))
}

func (m *Model) finish() {
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.busy = false
}

func ask(ctx context.Context, asker Asker, seq int, question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := asker.Ask(ctx, question)
		return answerMsg{seq: seq, question: question, resp: resp, err: err}
	}
}

func (m *Model) refresh() {
	if len(m.transcript) == 0 {
		m.viewport.SetContent("No questions yet.")
		return
	}
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Ask your PDF")
	summary := summaryStyle.Render(m.summary)
	body := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.failed {
		status = errorStyle.Render(m.status)
	}
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func renderQuestion(q string) string {
	return questionStyle.Render("Q: " + q)
}

func renderExchange(resp *models.PromptResponse, width int) string {
	var b strings.Builder
	b.WriteString(renderQuestion(resp.Query))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(max(20, width-2)).Render(resp.Content))
	for _, s := range resp.Sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(fmt.Sprintf("  chunk %d, page %d, similarity %.3f: %s",
			s.ChunkID, s.PageNumber, s.Similarity, helper.Truncate(strings.Join(strings.Fields(s.Content), " "), 60))))
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
