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

	"ragchat/internal/domain"
	"ragchat/internal/service"
	"ragchat/internal/textproc"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Answer(ctx context.Context, question string) service.Answer
	Status() service.Status
}

// IndexUpdatedMsg is sent by the watcher after a background rebuild.
type IndexUpdatedMsg struct {
	Stats service.BuildStats
	Err   error
}

type answerMsg struct {
	question string
	answer   service.Answer
}

type turn struct {
	question string
	answer   *service.Answer
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []turn
	summary  string
	status   string
	cursor   int
	busy     bool
	ready    bool
}

// New creates a new chat model. ctx bounds every question asked from the UI.
func New(ctx context.Context, svc RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		service:  svc,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Up/Down browse sources, PgUp/PgDn scroll, Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 3 // title, backend, summary
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		for i := len(m.turns) - 1; i >= 0; i-- {
			if m.turns[i].answer == nil && m.turns[i].question == msg.question {
				a := msg.answer
				m.turns[i].answer = &a
				break
			}
		}
		m.cursor = 0
		m.status = answerStatus(msg.answer)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case IndexUpdatedMsg:
		if msg.Err != nil {
			m.status = "Reindex failed: " + domain.UserMessage(msg.Err)
		} else {
			m.status = fmt.Sprintf("Reindexed %d files, %d chunks.", msg.Stats.FilesIndexed, msg.Stats.ChunksCreated)
			if msg.Stats.Summary != "" {
				m.summary = msg.Stats.Summary
			}
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.turns = append(m.turns, turn{question: q})
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			m.viewport.GotoBottom()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "down":
			if n := len(m.lastSources()); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.refresh()
				return m, nil
			}
		case "up":
			if n := len(m.lastSources()); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{question: q, answer: m.service.Answer(m.ctx, q)}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	backend := dimStyle.Render(backendLine(m.service.Status()))
	summary := dimStyle.Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + backend + "\n" + summary + "\n" + results + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) lastSources() []domain.SearchResult {
	if len(m.turns) == 0 {
		return nil
	}
	last := m.turns[len(m.turns)-1]
	if last.answer == nil {
		return nil
	}
	return last.answer.Chunks
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(youStyle.Render("You: ") + t.question + "\n")
		if t.answer == nil {
			b.WriteString(dimStyle.Render("..."))
			continue
		}
		b.WriteString(botStyle.Render("Assistant: ") + t.answer.Text)
	}
	if srcs := m.lastSources(); len(srcs) > 0 {
		r := srcs[m.cursor]
		last := m.turns[len(m.turns)-1]
		title := fmt.Sprintf("Source %d/%d  %s  distance=%.3f", m.cursor+1, len(srcs), r.Chunk.Source, r.Distance)
		b.WriteString("\n\n" + dimStyle.Render(title) + "\n" + highlightBestSentence(r.Chunk.Content, last.question))
	}
	return b.String()
}

func backendLine(st service.Status) string {
	llm := "LLM: " + st.Generator
	if !st.GeneratorAvailable {
		llm = "LLM: not configured, answers are retrieved snippets"
	}
	return fmt.Sprintf("%s | embedder: %s | %d files, %d chunks", llm, st.Embedder, len(st.Files), st.Chunks)
}

func answerStatus(a service.Answer) string {
	switch {
	case a.Err != nil:
		return "Language model failed: " + domain.UserMessage(a.Err)
	case a.Mode == service.ModeGenerated || a.Mode == service.ModeSnippets:
		return fmt.Sprintf("Answered from %d sources.", len(a.Sources))
	default:
		return "Ready."
	}
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	youStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := textproc.Sentences(text)
	best := bestSentence(sentences, query)
	if best < 0 {
		return strings.Join(sentences, " ")
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == best {
			out[i] = highlightStyle.Render(s)
		} else {
			out[i] = s
		}
	}
	return strings.Join(out, " ")
}

// bestSentence returns the index of the sentence sharing the most terms
// with query, or -1 when the query has no terms.
func bestSentence(sentences []string, query string) int {
	qTokens := textproc.TermSet(query)
	if len(qTokens) == 0 || len(sentences) == 0 {
		return -1
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for t := range textproc.TermSet(s) {
			if _, ok := qTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}
