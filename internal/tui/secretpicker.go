package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/refvalue"
)

// SecretLister is the part of the backend client the picker needs. It only
// ever yields keys.
type SecretLister interface {
	SecretKeys(ctx context.Context) ([]string, error)
}

type secretKeysMsg struct {
	id         int
	activation int
	keys       []string
	err        error
}

// SecretCommittedMsg reports the encoded reference the user picked.
type SecretCommittedMsg struct {
	PickerID int
	Value    string
}

// SecretPickerModel is a closed choice among secret keys. The keys are
// fetched once per activation and narrowed locally with fuzzy matching.
type SecretPickerModel struct {
	id         int
	lister     SecretLister
	activation int
	keyMap     autocompleteKeyMap
	pending    string

	Filter textinput.Model

	loading   bool
	err       error
	all       []string
	matches   []string
	highlight int
	offset    int
	rows      int
}

// NewSecretPickerModel creates a picker over lister.
func NewSecretPickerModel(lister SecretLister) SecretPickerModel {
	filter := textinput.New()
	filter.Placeholder = "filter secrets"
	filter.CharLimit = 128
	filter.Width = 40
	filter.Prompt = "🔑 "

	return SecretPickerModel{
		id:     nextOverlayID(),
		lister: lister,
		keyMap: newAutocompleteKeyMap(),
		Filter: filter,
		rows:   DefaultAutocompleteOptions().VisibleRows,
	}
}

// ID identifies the picker in SecretCommittedMsg.
func (m SecretPickerModel) ID() int { return m.id }

// Loading reports whether keys are being fetched.
func (m SecretPickerModel) Loading() bool { return m.loading }

// Matches returns the keys matching the filter, best first.
func (m SecretPickerModel) Matches() []string { return m.matches }

// Highlight returns the highlighted row.
func (m SecretPickerModel) Highlight() int { return m.highlight }

// Activate focuses the picker, highlights current (a key) and fetches the
// key list.
func (m *SecretPickerModel) Activate(current string) tea.Cmd {
	m.activation++
	m.loading = true
	m.err = nil
	m.all = nil
	m.matches = nil
	m.highlight = 0
	m.offset = 0
	m.Filter.SetValue("")

	id, activation, lister := m.id, m.activation, m.lister
	fetch := func() tea.Msg {
		keys, err := lister.SecretKeys(context.Background())
		return secretKeysMsg{id: id, activation: activation, keys: keys, err: err}
	}

	m.pending = current
	return tea.Batch(m.Filter.Focus(), fetch)
}

// Deactivate drops the key list; a fetch still in flight is ignored.
func (m *SecretPickerModel) Deactivate() {
	m.activation++
	m.loading = false
	m.all = nil
	m.matches = nil
	m.Filter.Blur()
}

// Update handles the key list arriving and navigation keys.
func (m SecretPickerModel) Update(msg tea.Msg) (SecretPickerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case secretKeysMsg:
		if msg.id != m.id || msg.activation != m.activation {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.all = msg.keys
		m.refilter()
		for i, k := range m.matches {
			if k == m.pending {
				m.highlight = i
				m.scroll()
			}
		}
		return m, nil

	case tea.KeyMsg:
		if !m.Filter.Focused() {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keyMap.Down):
			if len(m.matches) > 0 {
				m.highlight = (m.highlight + 1) % len(m.matches)
				m.scroll()
			}
			return m, nil
		case key.Matches(msg, m.keyMap.Up):
			if len(m.matches) > 0 {
				m.highlight = (m.highlight - 1 + len(m.matches)) % len(m.matches)
				m.scroll()
			}
			return m, nil
		case key.Matches(msg, m.keyMap.Commit):
			if m.highlight < 0 || m.highlight >= len(m.matches) {
				return m, nil
			}
			value := refvalue.EncodeSecret(m.matches[m.highlight])
			id := m.id
			return m, func() tea.Msg { return SecretCommittedMsg{PickerID: id, Value: value} }
		}

		before := m.Filter.Value()
		var cmd tea.Cmd
		m.Filter, cmd = m.Filter.Update(msg)
		if m.Filter.Value() != before {
			m.refilter()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.Filter, cmd = m.Filter.Update(msg)
	return m, cmd
}

func (m *SecretPickerModel) refilter() {
	m.highlight = 0
	m.offset = 0
	pattern := strings.TrimSpace(m.Filter.Value())
	if pattern == "" {
		m.matches = append([]string(nil), m.all...)
		return
	}
	found := fuzzy.Find(pattern, m.all)
	m.matches = make([]string, 0, len(found))
	for _, f := range found {
		m.matches = append(m.matches, f.Str)
	}
}

func (m *SecretPickerModel) scroll() {
	if m.highlight < m.offset {
		m.offset = m.highlight
	} else if m.highlight >= m.offset+m.rows {
		m.offset = m.highlight - m.rows + 1
	}
}

// View renders the filter and the key list. Values are never shown.
func (m SecretPickerModel) View() string {
	var body string
	switch {
	case m.loading:
		body = OverlayFooterStyle.Render("Loading secrets…")
	case m.err != nil:
		body = lipgloss.NewStyle().Foreground(ErrorColor).Render(backend.GetShortErrorMessage(m.err))
	case len(m.all) == 0:
		body = OverlayFooterStyle.Render("secrets.json has no keys")
	case len(m.matches) == 0:
		body = OverlayFooterStyle.Render("No matching secrets")
	default:
		end := m.offset + m.rows
		if end > len(m.matches) {
			end = len(m.matches)
		}
		lines := make([]string, 0, end-m.offset)
		for i := m.offset; i < end; i++ {
			if i == m.highlight {
				lines = append(lines, OverlaySelectedItemStyle.Render("→ "+m.matches[i]))
			} else {
				lines = append(lines, OverlayItemStyle.Render(m.matches[i]))
			}
		}
		body = strings.Join(lines, "\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.Filter.View(), OverlayBoxStyle.Render(body))
}
