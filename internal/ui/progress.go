package ui

import (
	"strings"

	"github.com/talentvibe/tui/internal/backend"
)

// FormatProgress renders progress events, one per line, oldest first.
func FormatProgress(events []backend.ProgressEvent) string {
	if len(events) == 0 {
		return StyleDim.Render("(no progress yet)")
	}
	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		style := CategoryStyle(ev.Category)
		b.WriteString(StyleDim.Render(FormatTime(ev.OccurredAt)))
		b.WriteString(" ")
		b.WriteString(style.Render(CategoryIcon(ev.Category)))
		b.WriteString(" ")
		b.WriteString(style.Render(ev.Message))
	}
	return b.String()
}

// FormatSkipped renders the skipped-files report.
func FormatSkipped(skipped []backend.SkippedFile) string {
	if len(skipped) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleWarning.Render("Skipped Files Report"))
	for _, f := range skipped {
		b.WriteString("\n  ")
		b.WriteString(StyleAccent.Render(f.Filename))
		b.WriteString(StyleDim.Render(": " + f.Reason))
	}
	return b.String()
}
