package jobview

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/viewport"

	"github.com/talentvibe/tui/internal/backend"
	"github.com/talentvibe/tui/internal/session"
	"github.com/talentvibe/tui/internal/ui"
)

// Model is the full-screen job detail view, the navigation target after a
// submission settles.
type Model struct {
	viewport viewport.Model
	jobID    string
	width    int
	height   int
	active   bool
}

// New creates a new job view model.
func New() Model {
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(24))
	return Model{
		viewport: vp,
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.SetWidth(w - 2)
	m.viewport.SetHeight(h)
}

// Show opens the view for jobID. st is only rendered when it belongs to the
// same job.
func (m *Model) Show(jobID string, st session.State) {
	m.jobID = jobID
	m.active = true
	m.setContent(st)
	m.viewport.GotoTop()
}

// Refresh re-renders with a newer state (live tail).
func (m *Model) Refresh(st session.State) {
	if !m.active {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.setContent(st)
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// Hide closes the view.
func (m *Model) Hide() {
	m.active = false
	m.jobID = ""
}

// Active returns whether the view is visible.
func (m *Model) Active() bool {
	return m.active
}

// JobID returns the job being viewed.
func (m *Model) JobID() string {
	return m.jobID
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the job view.
func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) setContent(st session.State) {
	var b strings.Builder

	b.WriteString(ui.StyleAccent.Render("Job "+m.jobID) + "\n")

	own := st.CurrentJobID != "" && st.CurrentJobID == m.jobID
	if !own {
		b.WriteString(ui.StyleDim.Render("No progress was recorded for this job in this session.") + "\n")
		m.viewport.SetContent(b.String())
		return
	}

	b.WriteString(ui.PhaseIcon(st.Phase) + " " + ui.StyleDim.Render(st.Phase.String()) + "\n")
	if o := st.Outcome; o != nil {
		b.WriteString(ui.StyleDim.Render(summary(*o)) + "\n")
	}
	b.WriteString(ui.StyleDim.Render("────────────────────────────────────────") + "\n\n")

	if o := st.Outcome; o != nil {
		if report := ui.FormatSkipped(o.Skipped); report != "" {
			b.WriteString(report + "\n\n")
		}
	}
	b.WriteString(ui.FormatProgress(st.Log))

	m.viewport.SetContent(b.String())
}

func summary(o backend.JobOutcome) string {
	return fmt.Sprintf("%s  total %d  processed %d  skipped %d",
		o.Kind, o.TotalFiles, o.ProcessedCount, len(o.Skipped))
}
