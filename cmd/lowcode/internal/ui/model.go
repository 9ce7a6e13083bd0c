package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Pane selects what the detail view shows.
type Pane int

const (
	PaneMarkup Pane = iota
	PaneStyle
)

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Tab      key.Binding
	Filter   key.Binding
	Back     key.Binding
	Quit     key.Binding
	Help     key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("pgup", "scroll detail up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("pgdn", "scroll detail down"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "markup/style"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Filter, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Tab, k.Filter, k.Back},
		{k.Help, k.Quit},
	}
}

// Style definitions
var (
	primaryColor = lipgloss.Color("#3b82f6")
	mutedColor   = lipgloss.Color("#94a3b8")
	errorColor   = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	selectedStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

// Model is the inspector state.
type Model struct {
	title   string
	items   []Item
	visible []int
	cursor  int
	pane    Pane

	width  int
	height int

	filter    textinput.Model
	filtering bool
	detail    viewport.Model
	help      help.Model
	quitting  bool
}

// NewModel creates an inspector over items.
func NewModel(title string, items []Item) Model {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "name or key"
	filter.CharLimit = 64

	m := Model{
		title:  title,
		items:  items,
		filter: filter,
		detail: viewport.New(60, 20),
		help:   help.New(),
		width:  100,
		height: 30,
	}
	m.applyFilter()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}

		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
		case key.Matches(msg, DefaultKeyMap.Up):
			m.move(-1)
		case key.Matches(msg, DefaultKeyMap.Down):
			m.move(1)
		case key.Matches(msg, DefaultKeyMap.Tab):
			m.pane = (m.pane + 1) % 2
			m.refreshDetail()
		case key.Matches(msg, DefaultKeyMap.Filter):
			m.filtering = true
			cmd := m.filter.Focus()
			return m, cmd
		case key.Matches(msg, DefaultKeyMap.Back):
			m.filter.SetValue("")
			m.applyFilter()
		case key.Matches(msg, DefaultKeyMap.PageUp):
			m.detail.SetYOffset(m.detail.YOffset - m.detail.Height/2)
		case key.Matches(msg, DefaultKeyMap.PageDown):
			m.detail.SetYOffset(m.detail.YOffset + m.detail.Height/2)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) move(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = max(0, min(len(m.visible)-1, m.cursor+delta))
	m.refreshDetail()
}

func (m *Model) applyFilter() {
	m.visible = nil
	for i, it := range m.items {
		if it.Matches(m.filter.Value()) {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
	m.refreshDetail()
}

func (m *Model) layout() {
	listWidth := m.width * 2 / 5
	m.detail.Width = max(20, m.width-listWidth-4)
	m.detail.Height = max(5, m.height-lipgloss.Height(m.footer())-4)
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	it, ok := m.Selected()
	if !ok {
		m.detail.SetContent(mutedStyle.Render("no matching nodes"))
		return
	}
	var content string
	switch {
	case m.pane == PaneMarkup && it.Err != nil:
		content = errorStyle.Render(it.Err.Error())
	case m.pane == PaneMarkup:
		content = it.Markup
	case it.Style == "":
		content = mutedStyle.Render("default style, no rule emitted")
	default:
		content = it.Style
	}
	m.detail.SetContent(content)
	m.detail.GotoTop()
}

// Selected returns the item under the cursor.
func (m Model) Selected() (Item, bool) {
	if len(m.visible) == 0 {
		return Item{}, false
	}
	return m.items[m.visible[m.cursor]], true
}

// View renders the inspector.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	listWidth := m.width * 2 / 5
	listHeight := max(1, m.detail.Height)
	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}

	var list strings.Builder
	for row, idx := range m.visible[start:min(len(m.visible), start+listHeight)] {
		label := m.items[idx].Label()
		if len(label) > listWidth-2 && listWidth > 5 {
			label = label[:listWidth-3] + "…"
		}
		if start+row == m.cursor {
			list.WriteString(selectedStyle.Render("▸ " + label))
		} else {
			list.WriteString("  " + label)
		}
		list.WriteString("\n")
	}

	paneName := "markup"
	if m.pane == PaneStyle {
		paneName = "style"
	}
	header := titleStyle.Render(m.title) + mutedStyle.Render(fmt.Sprintf("  %d/%d nodes · %s", len(m.visible), len(m.items), paneName))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth).Render(list.String()),
		boxStyle.Render(m.detail.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.footer())
}

func (m Model) footer() string {
	if m.filtering || m.filter.Value() != "" {
		return m.filter.View() + "\n" + m.help.View(DefaultKeyMap)
	}
	return m.help.View(DefaultKeyMap)
}

// Run starts the inspector in the terminal.
func Run(title string, items []Item) error {
	if !isatty() {
		return fmt.Errorf("not running in a terminal")
	}
	p := tea.NewProgram(NewModel(title, items), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// isatty checks if we're running in a terminal
func isatty() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
