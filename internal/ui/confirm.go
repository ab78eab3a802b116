package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultConfirmAnswer is what the user types to proceed unless a
// Confirmation names something else.
const DefaultConfirmAnswer = "yes"

// Confirmation is a warning box followed by a typed-answer prompt.
type Confirmation struct {
	Title    string
	Warnings []string
	Note     string
	Answer   string
}

// Ask renders the warning to out and reads one line from in. It returns true
// only when the line matches the expected answer, ignoring case and
// surrounding space. EOF or a read error counts as "no".
func (c Confirmation) Ask(in io.Reader, out io.Writer) bool {
	width := WidthOf(out)
	answer := c.Answer
	if answer == "" {
		answer = DefaultConfirmAnswer
	}

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title)), ""}
	for _, w := range c.Warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+w))
	}
	lines = append(lines, "")

	if c.Note != "" {
		note := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, note.Render(c.Note), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", answer)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(input), answer) {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
