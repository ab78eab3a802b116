package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dayahead/daocfg/internal/schema"
)

// RenderHelpTooltip renders the help box for a field.
func RenderHelpTooltip(f schema.Field, catalog schema.HelpCatalog, terminalWidth int) string {
	width := SafeModalWidth(64, terminalWidth)

	title := schema.FieldTitle(f.Name())
	body := lipgloss.NewStyle().Width(width - 4).Render(catalog.Text(f))
	path := SubtitleStyle.Render(f.ID())

	return InfoBoxStyle.
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			SectionStyle.Render("ⓘ "+title),
			path,
			"",
			body,
			"",
			SubtitleStyle.Render("press any key to close"),
		))
}
