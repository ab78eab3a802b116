package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dayahead/daocfg/internal/version"
)

// Application branding constants
const (
	AppName    = "DAO CONFIGURATION EDITOR"
	ProjectURL = "github.com/corneel27/day-ahead"
)

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72  // Minimum supported terminal width
	MaxContentWidth  = 120 // Maximum content width before capping

	// containerChromeRows is the outer border, header and footer with their
	// separators.
	containerChromeRows = 6
	// contentTopRow is the first screen row of the content area.
	contentTopRow = 3
)

// Color palette
var (
	// Primary colors
	PrimaryColor   = lipgloss.Color("#F2A900") // Amber
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	AccentColor    = lipgloss.Color("#4FA3F7") // Blue
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5F5F") // Red

	// Neutral colors
	TextColor       = lipgloss.Color("#FFFFFF") // White
	SubtleColor     = lipgloss.Color("#626262") // Gray
	BorderColor     = lipgloss.Color("#F2A900") // Amber (same as primary)
	HighlightColor  = lipgloss.Color("#43BF6D") // Green (same as secondary)
	BackgroundColor = lipgloss.Color("#1A1A1A") // Dark gray
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(HighlightColor).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor)

	InfoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// Dropdown rows
	OverlayItemStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	OverlaySelectedItemStyle = lipgloss.NewStyle().
					Foreground(HighlightColor).
					Bold(true)

	OverlayBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(AccentColor).
			Padding(0, 1)

	OverlayFooterStyle = lipgloss.NewStyle().
				Foreground(SubtleColor).
				Italic(true)

	// Field chips
	FlexChipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(AccentColor).
			Padding(0, 1)

	SecretChipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(WarningColor).
			Padding(0, 1)

	EntityChipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(SecondaryColor).
			Padding(0, 1)
)

// RenderSubtitle renders a subtitle with consistent styling
func RenderSubtitle(text string) string {
	return SubtitleStyle.Render(text)
}

// RenderError renders an error message
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// BuildHeaderContent creates header content with app name and the backend
// being edited.
func BuildHeaderContent(location string) string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + AppVersion())

	if location == "" {
		location = ProjectURL
	}
	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(location)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// BuildFooterContent creates footer content with help text
func BuildFooterContent(helpText string) string {
	return lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(helpText)
}

// RenderApplicationContainer wraps every screen: a full-terminal bordered
// panel with the application header on top and context help pinned to the
// bottom.
//
//	func (m Model) View() string {
//	    return RenderApplicationContainer(m.content(), m.Help.View(m.Keys), m.location, m.Width, m.Height)
//	}
func RenderApplicationContainer(content, footerText, location string, terminalWidth, terminalHeight int) string {
	if terminalWidth == 0 {
		terminalWidth = MinTerminalWidth
	}
	if terminalHeight == 0 {
		terminalHeight = 24
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	// Callers size their content to ContentHeight; anything taller is cut
	// so the footer stays visible.
	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth - 4).
		Height(ContentHeight(terminalHeight)).
		MaxHeight(ContentHeight(terminalHeight))

	innerContent := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent(location)),
		contentStyle.Render(content),
		footerStyle.Render(BuildFooterContent(footerText)),
	)

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top)

	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Left,
		lipgloss.Top,
		borderStyle.Render(innerContent),
	)
}

// ContentHeight is the number of rows available to screen content inside
// the application container.
func ContentHeight(terminalHeight int) int {
	if h := terminalHeight - containerChromeRows; h > 1 {
		return h
	}
	return 1
}

// SafeModalWidth returns the smaller of requestedWidth and what fits in
// the terminal, never below 40 columns.
func SafeModalWidth(requestedWidth, terminalWidth int) int {
	maxWidth := terminalWidth - 4
	if maxWidth < 40 {
		maxWidth = 40
	}
	if requestedWidth < maxWidth {
		return requestedWidth
	}
	return maxWidth
}

// RenderModal centers modalContent over a dimmed background. Only the help
// tooltip uses it; field editing happens inline.
func RenderModal(modalContent string, terminalWidth, terminalHeight int) string {
	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Center,
		lipgloss.Center,
		modalContent,
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("240")),
	)
}

// InlineEditorStyle frames a field editor expanded in place.
func InlineEditorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.Border{
			Top:    "━",
			Bottom: "━",
			Left:   "┃",
			Right:  "┃",
		}).
		BorderForeground(PrimaryColor).
		Padding(0, 1)
}
