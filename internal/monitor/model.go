package monitor

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
)

// ModelKey is the subscription key the dashboard uses on its Board.
const ModelKey = "dashboard"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB")).Padding(0, 1)
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).MarginTop(1)
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Italic(true)
)

type keyMap struct {
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type scriptsMsg []Script

// Model is the bubbletea dashboard over a Board.
type Model struct {
	updates <-chan []Script
	scripts []Script
	keys    keyMap
	width   int
}

// NewModel subscribes a dashboard to b. Only the newest snapshot is kept
// while the view is busy. Unsubscribe with b.Unsubscribe(ModelKey) once
// the program exits.
func NewModel(b *Board) Model {
	ch := make(chan []Script, 1)
	b.Subscribe(ModelKey, func(s []Script) {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	})
	return Model{
		updates: ch,
		scripts: b.Scripts(),
		keys:    defaultKeyMap(),
	}
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		return scriptsMsg(<-m.updates)
	}
}

// Init starts waiting for board updates.
func (m Model) Init() tea.Cmd {
	return m.wait()
}

// Update handles key presses, resizes and board snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case scriptsMsg:
		m.scripts = msg
		return m, m.wait()
	}
	return m, nil
}

// View renders the board.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("heist monitor"))
	b.WriteString("\n")
	b.WriteString(Render(m.scripts, m.width))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc))
	return b.String()
}

// Render draws scripts as a two column table. Status lines are cut to fit
// width; width <= 0 disables truncation.
func Render(scripts []Script, width int) string {
	if len(scripts) == 0 {
		return emptyStyle.Render("No status reported yet.")
	}

	nameWidth := len("Script")
	for _, s := range scripts {
		nameWidth = max(nameWidth, ansi.StringWidth(s.Name))
	}
	// Three borders and two cells of padding on each column.
	statusWidth := width - nameWidth - 7

	rows := make([][]string, 0, len(scripts))
	for _, s := range scripts {
		text := strings.TrimRight(s.Status, "\n")
		if width > 0 && statusWidth > 0 {
			lines := strings.Split(text, "\n")
			for i, line := range lines {
				lines[i] = ansi.Truncate(line, statusWidth, "…")
			}
			text = strings.Join(lines, "\n")
		}
		rows = append(rows, []string{s.Name, text})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		BorderRow(true).
		Headers("Script", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}
