package command

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/talentvibe/tui/internal/ui"
)

const (
	maxMenuRows = 8
	maxHistory  = 50
)

// ExecuteMsg is sent when a parsed command should be run by the parent.
type ExecuteMsg struct {
	Command Command
}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Accept key.Binding
	Run    key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Next:   key.NewBinding(key.WithKeys("down", "ctrl+n")),
	Prev:   key.NewBinding(key.WithKeys("up", "ctrl+p")),
	Accept: key.NewBinding(key.WithKeys("tab")),
	Run:    key.NewBinding(key.WithKeys("enter")),
	Cancel: key.NewBinding(key.WithKeys("esc")),
}

// menu is the completion list shown above the prompt.
type menu struct {
	items  []Candidate
	cursor int // -1 while nothing is highlighted
}

func (mn *menu) reset(items []Candidate) {
	mn.items = items
	mn.cursor = -1
}

func (mn *menu) move(delta int) {
	if len(mn.items) == 0 {
		return
	}
	mn.cursor = (mn.cursor + delta + len(mn.items)) % len(mn.items)
}

func (mn menu) current() (Candidate, bool) {
	if mn.cursor < 0 || mn.cursor >= len(mn.items) {
		return Candidate{}, false
	}
	return mn.items[mn.cursor], true
}

// Model is the ":"-style prompt at the bottom of the screen. It parses what
// the user typed and hands the parent an ExecuteMsg; parse errors stay in
// the prompt's own result pane.
type Model struct {
	input     textinput.Model
	errPane   viewport.Model
	completer *Completer
	menu      menu
	history   []string
	recall    int // index into history while browsing, len(history) otherwise
	focused   bool
	showErr   bool
	width     int
}

// New creates a new command model.
func New() Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "submit · add <path> · remove <name> · clear · job <id> · help · quit"
	ti.CharLimit = 512

	return Model{
		input:     ti,
		errPane:   viewport.New(viewport.WithWidth(80), viewport.WithHeight(3)),
		completer: NewCompleter(),
		menu:      menu{cursor: -1},
	}
}

// SetSize updates dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.input.SetWidth(w - 4)
	m.errPane.SetWidth(w - 2)
	m.errPane.SetHeight(max(1, h-3))
}

// SetSelected feeds remove completion with the selected file names.
func (m *Model) SetSelected(names []string) { m.completer.SetSelected(names) }

// SetAvailable feeds add completion with drop-directory paths.
func (m *Model) SetAvailable(paths []string) { m.completer.SetAvailable(paths) }

// SetJobIDs feeds job completion.
func (m *Model) SetJobIDs(ids []string) { m.completer.SetJobIDs(ids) }

// SetError shows err under the prompt until the next keystroke.
func (m *Model) SetError(err error) {
	m.showErr = true
	m.menu.reset(nil)
	m.errPane.SetContent(ui.StyleError.Render("Error: " + err.Error()))
	m.errPane.GotoTop()
}

// ClearResult hides any error.
func (m *Model) ClearResult() {
	m.showErr = false
	m.menu.reset(nil)
	m.errPane.SetContent("")
}

// Focus opens the prompt with the full command list.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	m.showErr = false
	m.recall = len(m.history)
	m.refreshMenu()
	return m.input.Focus()
}

// Blur closes the prompt.
func (m *Model) Blur() {
	m.focused = false
	m.menu.reset(nil)
	m.input.Blur()
}

// Focused reports whether the prompt has focus.
func (m *Model) Focused() bool { return m.focused }

// History returns previously executed command lines, oldest first.
func (m Model) History() []string { return m.history }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, keys.Cancel):
		m.Blur()
		m.ClearResult()
		return m, nil

	case key.Matches(keyMsg, keys.Next):
		if len(m.menu.items) > 0 {
			m.menu.move(1)
		} else {
			m.browse(1)
		}
		return m, nil

	case key.Matches(keyMsg, keys.Prev):
		if len(m.menu.items) > 0 {
			m.menu.move(-1)
		} else {
			m.browse(-1)
		}
		return m, nil

	case key.Matches(keyMsg, keys.Accept):
		if c, ok := m.menu.current(); ok {
			m.insert(c.Value)
		} else if len(m.menu.items) > 0 {
			m.insert(m.menu.items[0].Value)
		}
		m.refreshMenu()
		return m, nil

	case key.Matches(keyMsg, keys.Run):
		if c, ok := m.menu.current(); ok {
			m.insert(c.Value)
			m.refreshMenu()
			return m, nil
		}
		return m.run()
	}

	m.showErr = false
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshMenu()
	return m, cmd
}

func (m Model) run() (Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.menu.reset(nil)

	parsed, err := Parse(line)
	if err != nil {
		m.SetError(err)
		return m, nil
	}
	m.remember(line)
	m.Blur()
	return m, func() tea.Msg { return ExecuteMsg{Command: parsed} }
}

func (m *Model) remember(line string) {
	if n := len(m.history); n > 0 && m.history[n-1] == line {
		return
	}
	m.history = append(m.history, line)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
}

// browse walks the history; stepping past the newest entry empties the line.
func (m *Model) browse(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.recall = min(max(m.recall+delta, 0), len(m.history))
	if m.recall == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.recall])
	}
	m.input.CursorEnd()
}

// insert completes the word under the cursor with value.
func (m *Model) insert(value string) {
	line := m.input.Value()
	if i := strings.LastIndexByte(line, ' '); i >= 0 {
		line = line[:i+1]
	} else {
		line = ""
	}
	m.input.SetValue(line + value + " ")
	m.input.CursorEnd()
}

func (m *Model) refreshMenu() {
	if m.showErr {
		m.menu.reset(nil)
		return
	}
	m.menu.reset(m.completer.Complete(m.input.Value()))
}

// MenuHeight is the number of lines the completion panel takes, borders
// included.
func (m Model) MenuHeight() int {
	if !m.focused || m.showErr || len(m.menu.items) == 0 {
		return 0
	}
	return min(len(m.menu.items), maxMenuRows) + 2
}

// ViewInput renders the completion panel and the prompt line.
func (m Model) ViewInput() string {
	if !m.focused {
		return ""
	}
	if m.MenuHeight() == 0 {
		return m.input.View()
	}
	return m.renderMenu() + "\n" + m.input.View()
}

// ViewResult renders the error pane, if any.
func (m Model) ViewResult() string {
	if !m.showErr {
		return ""
	}
	return m.errPane.View()
}

var (
	menuPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorBorder).
			Padding(0, 1)
	menuHighlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ui.T.Background)).
			Background(ui.ColorAccent)
	menuValue = lipgloss.NewStyle().Foreground(ui.ColorWhite)
	menuDesc  = lipgloss.NewStyle().Foreground(ui.ColorDim)
)

func (m Model) renderMenu() string {
	items := m.menu.items
	if len(items) > maxMenuRows {
		items = items[:maxMenuRows]
	}
	pad := 0
	for _, c := range items {
		pad = max(pad, len(c.Value))
	}

	lines := make([]string, 0, len(items))
	for i, c := range items {
		value := fmt.Sprintf("%-*s", pad, c.Value)
		desc := ""
		if c.Desc != "" {
			desc = "  " + c.Desc
		}
		if i == m.menu.cursor {
			lines = append(lines, menuHighlight.Render(value+desc))
			continue
		}
		lines = append(lines, menuValue.Render(value)+menuDesc.Render(desc))
	}
	return menuPanel.Width(max(40, m.width-4)).Render(strings.Join(lines, "\n"))
}
