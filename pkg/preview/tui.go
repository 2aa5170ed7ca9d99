package preview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/feed-widget/pkg/widget"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	HTMLViewMode
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	posts         []widget.PostSummary
	cursor        int
	viewMode      ViewMode
	config        string
	variant       widget.Variant
	renderer      widget.Renderer
	width         int
	height        int
	selectedIndex int
}

// NewModel creates a new preview model
func NewModel(posts []widget.PostSummary, config string, variant widget.Variant, renderer widget.Renderer) Model {
	return Model{
		posts:         posts,
		viewMode:      ListViewMode,
		config:        config,
		variant:       variant,
		renderer:      renderer,
		selectedIndex: -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ListViewMode:
			return m.updateListView(msg)
		case DetailViewMode, HTMLViewMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.posts)-1 {
			m.cursor++
		}

	case "enter":
		m.selectedIndex = m.cursor
		m.viewMode = DetailViewMode

	case "h":
		m.selectedIndex = m.cursor
		m.viewMode = HTMLViewMode
	}

	return m, nil
}

func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "h":
		if m.viewMode == DetailViewMode {
			m.viewMode = HTMLViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case DetailViewMode:
		return m.renderDetailView()
	case HTMLViewMode:
		return m.renderHTMLView()
	default:
		return m.renderListView()
	}
}

// visibleRange keeps the cursor roughly centred when the list is taller than the window
func (m Model) visibleRange() (int, int) {
	start, end := 0, len(m.posts)
	if m.height <= 0 {
		return start, end
	}

	maxVisible := m.height - 6 // header, footer and padding
	if maxVisible <= 0 || maxVisible >= len(m.posts) {
		return start, end
	}

	start = max(m.cursor-maxVisible/2, 0)
	end = start + maxVisible
	if end > len(m.posts) {
		end = len(m.posts)
		start = max(end-maxVisible, 0)
	}
	return start, end
}

func (m Model) renderListView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Widget Preview - %s, %s (%d posts)", m.config, m.variant, len(m.posts))))
	b.WriteString("\n\n")

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		line := FormatCompactListItem(i, m.posts[i])
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ or j/k: navigate • enter: details • h: HTML view • q: quit"))
	return b.String()
}

func (m Model) selected() (widget.PostSummary, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.posts) {
		return widget.PostSummary{}, false
	}
	return m.posts[m.selectedIndex], true
}

func (m Model) renderDetailView() string {
	post, ok := m.selected()
	if !ok {
		return "No post selected"
	}

	var b strings.Builder
	b.WriteString(FormatDetailedItem(post))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • h: toggle HTML view • q: quit"))
	return b.String()
}

func (m Model) renderHTMLView() string {
	post, ok := m.selected()
	if !ok {
		return "No post selected"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Rendered Card"))
	b.WriteString("\n\n")
	b.WriteString(FormatHTMLItem(post, m.renderer, m.variant))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • h: toggle detail view • q: quit"))
	return b.String()
}

// Run starts the Bubble Tea program
func Run(posts []widget.PostSummary, config string, variant widget.Variant, renderer widget.Renderer) error {
	if len(posts) == 0 {
		fmt.Println("No posts to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(posts, config, variant, renderer), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
