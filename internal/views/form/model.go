package form

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/textarea"

	"github.com/talentvibe/tui/internal/ui"
)

const descriptionLimit = 20000

// Model edits the job description.
type Model struct {
	input   textarea.Model
	focused bool
	width   int
	height  int
}

// New creates a form with an empty description.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Paste the job description here..."
	ta.ShowLineNumbers = false
	ta.CharLimit = descriptionLimit
	ta.SetHeight(4)
	return Model{input: ta}
}

// SetSize updates the dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.input.SetWidth(w - 4)
	m.input.SetHeight(h)
}

// Height returns the rendered height: label, text rows and panel border.
func (m *Model) Height() int { return m.height + 3 }

// Value returns the description.
func (m *Model) Value() string { return m.input.Value() }

// SetValue replaces the description.
func (m *Model) SetValue(s string) { m.input.SetValue(s) }

// Focus starts editing.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur stops editing.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// Focused returns whether the description is being edited.
func (m *Model) Focused() bool { return m.focused }

// Update handles messages. Esc leaves the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	if k, ok := msg.(tea.KeyPressMsg); ok && k.String() == "esc" {
		m.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the description panel.
func (m Model) View() string {
	style := ui.StylePanel
	if m.focused {
		style = ui.StyleFocusedPanel
	}
	return style.Width(m.width).Render(ui.StyleDim.Render("Job description") + "\n" + m.input.View())
}
