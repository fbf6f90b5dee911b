package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragspan/internal/domain"
	"ragspan/internal/highlight"
)

const (
	contextLines = 2
	queryTimeout = 30 * time.Second
)

// SearchPort is the TUI-facing subset of the session service.
type SearchPort interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Excerpt(chunkID string, contextLines int) (highlight.Excerpt, error)
	Documents() []domain.DocumentInfo
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   SearchPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	documents map[string]domain.DocumentInfo
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(service SearchPort, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if topK <= 0 {
		topK = 5
	}
	docs := service.Documents()
	byID := make(map[string]domain.DocumentInfo, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	return Model{
		service:   service,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		documents: byID,
		summary:   describeDocuments(docs),
		status:    "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
				res, err := m.service.Search(ctx, q, m.topK)
				cancel()
				if err != nil {
					m.status = "Error: " + err.Error()
					m.results = nil
				} else {
					m.status = fmt.Sprintf("%d results for %q", len(res), q)
					m.results = res
					m.cursor = 0
					m.lastQuery = q
				}
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("ragspan")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f  %s  %s",
		m.cursor+1, len(m.results), r.Score, r.DocumentName, highlight.Location(r.Chunk))
	ex, err := m.service.Excerpt(r.Chunk.ID, contextLines)
	if err != nil {
		ex = highlight.Excerpt{Match: r.Chunk.Text}
	}
	return titleStyle.Render(title) + "\n" + m.renderDocument(r.Chunk.DocumentID) + "\n" + renderExcerpt(ex)
}

// renderDocument shows the summary and keywords of the result's document.
func (m Model) renderDocument(id string) string {
	d, ok := m.documents[id]
	if !ok {
		return ""
	}
	var b strings.Builder
	if d.Summary != "" {
		b.WriteString(contextStyle.Render("Summary: "+d.Summary) + "\n")
	}
	if len(d.Keywords) > 0 {
		b.WriteString(contextStyle.Render("Keywords: "+strings.Join(d.Keywords, ", ")) + "\n")
	}
	return b.String()
}

// renderExcerpt styles the match line by line so styling survives wrapping.
func renderExcerpt(ex highlight.Excerpt) string {
	lines := strings.Split(ex.Match, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = highlightStyle.Render(l)
		}
	}
	return contextStyle.Render(ex.Before) + strings.Join(lines, "\n") + contextStyle.Render(ex.After)
}

func describeDocuments(docs []domain.DocumentInfo) string {
	if len(docs) == 0 {
		return "No documents indexed."
	}
	names := make([]string, len(docs))
	chunks := 0
	for i, d := range docs {
		names[i] = d.Name
		chunks += d.Chunks
	}
	return fmt.Sprintf("%d documents, %d chunks: %s", len(docs), chunks, strings.Join(names, ", "))
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	contextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
