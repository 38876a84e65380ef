package skipped

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/table"
	"charm.land/bubbles/v2/viewport"
	"charm.land/lipgloss/v2"

	"github.com/talentvibe/tui/internal/backend"
	"github.com/talentvibe/tui/internal/ui"
)

const (
	previewWidthFrac = 0.45
	minPreviewWidth  = 30
)

// Model lists the files the backend refused in the last result.
type Model struct {
	table   table.Model
	preview viewport.Model
	skipped []backend.SkippedFile
	outcome *backend.JobOutcome
	width   int
	height  int
	focused bool
}

// New creates a new skipped-files view model.
func New() Model {
	cols := []table.Column{
		{Title: "filename", Width: 28},
		{Title: "reason", Width: 40},
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(false),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		Bold(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.ColorBorder)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Background(ui.ColorAccent).
		Bold(true)
	t.SetStyles(s)

	vp := viewport.New(viewport.WithWidth(40), viewport.WithHeight(10))

	return Model{
		table:   t,
		preview: vp,
	}
}

// SetOutcome shows the skipped files of outcome. A nil outcome clears the view.
func (m *Model) SetOutcome(outcome *backend.JobOutcome) {
	m.outcome = outcome
	m.skipped = nil
	if outcome != nil {
		m.skipped = outcome.Skipped
	}
	rows := make([]table.Row, len(m.skipped))
	for i, f := range m.skipped {
		rows[i] = table.Row{f.Filename, truncate(f.Reason, 40)}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
	m.updatePreview()
}

// Count returns the number of skipped files shown.
func (m *Model) Count() int { return len(m.skipped) }

// SetSize updates the view dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h

	previewW := int(float64(w) * previewWidthFrac)
	if previewW < minPreviewWidth {
		previewW = minPreviewWidth
	}
	tableW := w - previewW - 3

	m.table.SetWidth(tableW)
	m.table.SetHeight(h)
	m.preview.SetWidth(previewW)
	m.preview.SetHeight(h)

	reasonW := tableW - 28 - 3
	if reasonW < 10 {
		reasonW = 10
	}
	cols := m.table.Columns()
	if len(cols) == 2 {
		cols[1].Width = reasonW
		m.table.SetColumns(cols)
	}
}

// SelectedFile returns the skipped file under the cursor, if any.
func (m *Model) SelectedFile() *backend.SkippedFile {
	idx := m.table.Cursor()
	if idx >= 0 && idx < len(m.skipped) {
		return &m.skipped[idx]
	}
	return nil
}

// Focus sets focus on the table.
func (m *Model) Focus() {
	m.focused = true
	m.table.Focus()
}

// Blur removes focus from the table.
func (m *Model) Blur() {
	m.focused = false
	m.table.Blur()
}

// Update handles messages for the skipped-files view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	prev := m.table.Cursor()
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != prev {
		m.updatePreview()
	}
	return m, cmd
}

// View renders the skipped-files view.
func (m Model) View() string {
	tableView := m.table.View()
	previewStyle := ui.StylePreviewBorder.Height(m.height)
	previewView := previewStyle.Render(m.preview.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, previewView)
}

func (m *Model) updatePreview() {
	if m.outcome == nil {
		m.preview.SetContent(ui.StyleDim.Render("No result yet"))
		return
	}

	var b strings.Builder

	b.WriteString(ui.StyleAccent.Render("Result:  ") + m.outcome.Kind.String() + "\n")
	if m.outcome.JobID != "" {
		b.WriteString(ui.StyleDim.Render("Job:     ") + m.outcome.JobID + "\n")
	}
	b.WriteString(ui.StyleDim.Render("Total:   ") + fmt.Sprintf("%d", m.outcome.TotalFiles) + "\n")
	b.WriteString(ui.StyleDim.Render("Done:    ") + fmt.Sprintf("%d", m.outcome.ProcessedCount) + "\n")
	b.WriteString(ui.StyleDim.Render("Skipped: ") + fmt.Sprintf("%d", len(m.skipped)) + "\n")

	if f := m.SelectedFile(); f != nil {
		b.WriteString("\n" + ui.StyleDim.Render("─── Reason ───") + "\n\n")
		b.WriteString(ui.StyleAccent.Render(f.Filename) + "\n")
		b.WriteString(f.Reason)
	} else {
		b.WriteString("\n" + ui.StyleDim.Render("(no skipped files)"))
	}

	m.preview.SetContent(b.String())
	m.preview.GotoTop()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) > maxLen {
		return string([]rune(s)[:maxLen-1]) + "…"
	}
	return s
}
