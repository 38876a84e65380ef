package files

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/table"
	"charm.land/bubbles/v2/viewport"
	"charm.land/lipgloss/v2"

	"github.com/talentvibe/tui/internal/backend"
	"github.com/talentvibe/tui/internal/session"
	"github.com/talentvibe/tui/internal/ui"
)

const (
	previewWidthFrac = 0.5
	minPreviewWidth  = 30
)

// Model is the upload view: selected résumés on the left, the submission
// status and progress log on the right.
type Model struct {
	table   table.Model
	preview viewport.Model
	files   []backend.FileRef
	width   int
	height  int
	focused bool
}

// New creates a new files view model.
func New() Model {
	cols := []table.Column{
		{Title: "file", Width: 28},
		{Title: "size", Width: 9},
		{Title: "path", Width: 30},
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	vp := viewport.New(viewport.WithWidth(40), viewport.WithHeight(10))

	return Model{
		table:   t,
		preview: vp,
		focused: true,
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		Bold(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.ColorBorder)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(ui.T.Accent)).
		Bold(true)
	return s
}

// SetFiles replaces the file list and rebuilds the table rows.
func (m *Model) SetFiles(files []backend.FileRef) {
	m.files = files
	rows := make([]table.Row, len(files))
	for i, f := range files {
		rows[i] = table.Row{f.Name, ui.FormatSize(f.Size), f.Path}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// Files returns the current selection.
func (m *Model) Files() []backend.FileRef { return m.files }

// SetStatus renders the session state into the right pane.
func (m *Model) SetStatus(st session.State, indicator string) {
	atBottom := m.preview.AtBottom()
	m.preview.SetContent(RenderStatus(st, indicator))
	if atBottom {
		m.preview.GotoBottom()
	}
}

// RenderStatus formats the status message, the analyzing indicator, the
// skipped report and the progress log.
func RenderStatus(st session.State, indicator string) string {
	var b strings.Builder

	b.WriteString(ui.PhaseIcon(st.Phase) + " " + ui.StyleAccent.Render(st.Phase.String()))
	if st.CurrentJobID != "" {
		b.WriteString("  " + ui.StyleDim.Render("job ") + st.CurrentJobID)
	}
	b.WriteString("\n")

	if st.Phase == session.PhaseSubmitting {
		b.WriteString(indicator + " " + ui.StyleAccent.Render("Analyzing...") + "\n")
	}
	if st.Message != "" {
		b.WriteString(ui.LevelStyle(st.Level).Render(st.Message) + "\n")
	}
	if st.Outcome != nil {
		if report := ui.FormatSkipped(st.Outcome.Skipped); report != "" {
			b.WriteString("\n" + report + "\n")
		}
	}

	b.WriteString("\n" + ui.StyleDim.Render("─── Progress ───") + "\n\n")
	b.WriteString(ui.FormatProgress(st.Log))
	return b.String()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h

	previewW := m.previewWidth()
	tableW := w - previewW - 3

	m.table.SetWidth(tableW)
	m.table.SetHeight(h)
	m.preview.SetWidth(previewW)
	m.preview.SetHeight(h)

	fixedW := 28 + 9 + 4
	pathW := tableW - fixedW
	if pathW < 10 {
		pathW = 10
	}
	cols := m.table.Columns()
	if len(cols) == 3 {
		cols[2].Width = pathW
		m.table.SetColumns(cols)
	}
}

// SelectedFile returns the file under the cursor, if any.
func (m *Model) SelectedFile() *backend.FileRef {
	idx := m.table.Cursor()
	if idx >= 0 && idx < len(m.files) {
		return &m.files[idx]
	}
	return nil
}

// Focus sets focus on the files table.
func (m *Model) Focus() {
	m.focused = true
	m.table.Focus()
}

// Blur removes focus from the files table.
func (m *Model) Blur() {
	m.focused = false
	m.table.Blur()
}

// Update handles messages for the files view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table and the status pane side by side.
func (m Model) View() string {
	tableView := m.table.View()
	if len(m.files) == 0 {
		tableView = lipgloss.NewStyle().
			Width(m.width - m.previewWidth() - 3).
			Height(m.height).
			Render(ui.StyleDim.Render(" No résumés selected.\n Drop .pdf .doc .docx .txt files into the drop folder\n or use /add <path>."))
	}

	previewStyle := ui.StylePreviewBorder.
		Width(m.previewWidth()).
		Height(m.height)
	previewView := previewStyle.Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, previewView)
}

func (m *Model) previewWidth() int {
	pw := int(float64(m.width) * previewWidthFrac)
	if pw < minPreviewWidth {
		pw = minPreviewWidth
	}
	return pw
}
