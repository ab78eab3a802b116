package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultToastDuration is how long a toast stays up.
const DefaultToastDuration = 4 * time.Second

// ToastKind selects the toast colour.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastError
)

type toastExpiredMsg struct {
	seq int
}

// ToastModel is a transient notification that dismisses itself.
type ToastModel struct {
	Duration time.Duration

	text string
	kind ToastKind
	seq  int
}

// NewToastModel creates a toast host showing each message for d.
func NewToastModel(d time.Duration) ToastModel {
	if d <= 0 {
		d = DefaultToastDuration
	}
	return ToastModel{Duration: d}
}

// Show replaces the current toast and schedules its expiry.
func (m *ToastModel) Show(text string, kind ToastKind) tea.Cmd {
	m.seq++
	m.text = text
	m.kind = kind
	seq := m.seq
	return tea.Tick(m.Duration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// Visible reports whether a toast is up.
func (m ToastModel) Visible() bool { return m.text != "" }

// Text returns the toast text.
func (m ToastModel) Text() string { return m.text }

// Update clears the toast when its own expiry arrives. A newer toast is
// not cut short by an older timer.
func (m ToastModel) Update(msg tea.Msg) (ToastModel, tea.Cmd) {
	if msg, ok := msg.(toastExpiredMsg); ok && msg.seq == m.seq {
		m.text = ""
	}
	return m, nil
}

func (m ToastModel) View() string {
	if m.text == "" {
		return ""
	}
	color, icon := AccentColor, "ℹ"
	switch m.kind {
	case ToastSuccess:
		color, icon = SecondaryColor, "✓"
	case ToastError:
		color, icon = ErrorColor, "✗"
	}
	return lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(icon + " " + m.text)
}
