package ui

import (
	"fmt"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/talentvibe/tui/internal/backend"
	"github.com/talentvibe/tui/internal/session"
)

var (
	ColorGreen  = lipgloss.Color(T.Green)
	ColorRed    = lipgloss.Color(T.Red)
	ColorYellow = lipgloss.Color(T.Yellow)
	ColorBlue   = lipgloss.Color(T.Blue)
	ColorCyan   = lipgloss.Color(T.Cyan)
	ColorDim    = lipgloss.Color(T.Dim)
	ColorWhite  = lipgloss.Color(T.Foreground)
	ColorBorder = lipgloss.Color(T.Border)
	ColorAccent = lipgloss.Color(T.Accent)
	ColorHeader = lipgloss.Color(T.BrightWhite)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeader)

	StyleActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorGreen)

	StyleInactive = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorRed)

	StyleDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleAccent = lipgloss.NewStyle().
			Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorRed)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorYellow)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StylePreviewBorder = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ColorBorder).
				PaddingLeft(1)

	StylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleFocusedPanel = StylePanel.
				BorderForeground(ColorAccent)
)

// CategoryStyle returns the style for a progress event category.
func CategoryStyle(c backend.Category) lipgloss.Style {
	switch c {
	case backend.CategorySuccess, backend.CategoryComplete:
		return StyleSuccess
	case backend.CategoryWarning:
		return StyleWarning
	case backend.CategoryError:
		return StyleError
	case backend.CategoryProcessing:
		return lipgloss.NewStyle().Foreground(ColorBlue)
	default:
		return lipgloss.NewStyle().Foreground(ColorCyan)
	}
}

// CategoryIcon returns a one-cell marker for a progress event category.
func CategoryIcon(c backend.Category) string {
	switch c {
	case backend.CategorySuccess:
		return "✓"
	case backend.CategoryComplete:
		return "★"
	case backend.CategoryWarning:
		return "!"
	case backend.CategoryError:
		return "✗"
	case backend.CategoryProcessing:
		return "…"
	default:
		return "•"
	}
}

// LevelStyle returns the style for a status message.
func LevelStyle(l session.Level) lipgloss.Style {
	switch l {
	case session.LevelSuccess:
		return StyleSuccess
	case session.LevelWarning:
		return StyleWarning
	case session.LevelError:
		return StyleError
	default:
		return lipgloss.NewStyle().Foreground(ColorWhite)
	}
}

// PhaseIcon returns an icon for a session phase.
func PhaseIcon(p session.Phase) string {
	switch p {
	case session.PhaseSubmitting:
		return lipgloss.NewStyle().Foreground(ColorBlue).Render("🔄")
	case session.PhaseAwaitingCompletion:
		return lipgloss.NewStyle().Foreground(ColorYellow).Render("⏳")
	case session.PhaseSettled:
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("✅")
	case session.PhaseFailed:
		return lipgloss.NewStyle().Foreground(ColorRed).Render("❌")
	default:
		return " "
	}
}

// FormatSize formats a byte count.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatTime renders an event time in local time.
func FormatTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}
