package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dayahead/daocfg/internal/backend"
)

// EntitySearcher is the part of the backend client the overlay needs.
type EntitySearcher interface {
	Search(ctx context.Context, domainFilter, pattern string) ([]backend.Entity, error)
}

// AutocompleteOptions tune the overlay.
type AutocompleteOptions struct {
	MinChars    int
	MaxResults  int
	Debounce    time.Duration
	VisibleRows int
}

// DefaultAutocompleteOptions returns the stock tuning: 2 characters, 50
// results, 300ms quiet period, 8 visible rows.
func DefaultAutocompleteOptions() AutocompleteOptions {
	return AutocompleteOptions{
		MinChars:    2,
		MaxResults:  50,
		Debounce:    300 * time.Millisecond,
		VisibleRows: 8,
	}
}

// OverlayState is the lifecycle of the dropdown.
type OverlayState int

const (
	OverlayIdle OverlayState = iota
	OverlayLoading
	OverlayShowing
	OverlayError
)

func (s OverlayState) String() string {
	switch s {
	case OverlayIdle:
		return "idle"
	case OverlayLoading:
		return "loading"
	case OverlayShowing:
		return "showing"
	case OverlayError:
		return "error"
	default:
		return "unknown"
	}
}

var lastOverlayID int64

func nextOverlayID() int {
	return int(atomic.AddInt64(&lastOverlayID, 1))
}

type autocompleteDebounceMsg struct {
	id  int
	seq int
}

type autocompleteResultMsg struct {
	id       int
	seq      int
	pattern  string
	entities []backend.Entity
	err      error
}

// EntityCommittedMsg reports that the user picked an entity.
type EntityCommittedMsg struct {
	OverlayID int
	EntityID  string
}

type autocompleteKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Commit key.Binding
	Close  key.Binding
}

func newAutocompleteKeyMap() autocompleteKeyMap {
	return autocompleteKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next"),
		),
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

// AutocompleteModel is a text input with a search-as-you-type dropdown of
// Home Assistant entities.
//
// Every keystroke bumps seq. A debounce tick only fires a search when its
// seq is still current, and a search result is only rendered when it
// belongs to the current seq, so late answers to superseded queries are
// dropped on arrival.
type AutocompleteModel struct {
	id           int
	searcher     EntitySearcher
	domainFilter string
	opts         AutocompleteOptions
	keys         autocompleteKeyMap

	Input textinput.Model

	state     OverlayState
	seq       int
	results   []backend.Entity
	total     int
	highlight int
	offset    int
	err       error

	rowsAbove int
	rowsBelow int
}

// NewAutocompleteModel creates an overlay searching within domainFilter.
func NewAutocompleteModel(searcher EntitySearcher, domainFilter string, opts AutocompleteOptions) AutocompleteModel {
	defaults := DefaultAutocompleteOptions()
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaults.MaxResults
	}
	if opts.VisibleRows <= 0 {
		opts.VisibleRows = defaults.VisibleRows
	}
	if opts.MinChars < 0 {
		opts.MinChars = 0
	}

	input := textinput.New()
	input.Placeholder = "start typing an entity id or name"
	input.CharLimit = 255
	input.Width = 48
	input.Prompt = "⌕ "

	return AutocompleteModel{
		id:           nextOverlayID(),
		searcher:     searcher,
		domainFilter: domainFilter,
		opts:         opts,
		keys:         newAutocompleteKeyMap(),
		Input:        input,
		highlight:    -1,
	}
}

// ID identifies the overlay in EntityCommittedMsg.
func (m AutocompleteModel) ID() int { return m.id }

// State returns the dropdown state.
func (m AutocompleteModel) State() OverlayState { return m.state }

// Open reports whether the dropdown is visible.
func (m AutocompleteModel) Open() bool { return m.state != OverlayIdle }

// Results returns the rendered (possibly truncated) result list.
func (m AutocompleteModel) Results() []backend.Entity { return m.results }

// Highlight returns the highlighted row, or -1.
func (m AutocompleteModel) Highlight() int { return m.highlight }

// Value returns the typed text.
func (m AutocompleteModel) Value() string { return m.Input.Value() }

// SetValue replaces the typed text without searching.
func (m *AutocompleteModel) SetValue(v string) {
	m.Input.SetValue(v)
	m.Input.CursorEnd()
}

// Focus focuses the input.
func (m *AutocompleteModel) Focus() tea.Cmd {
	return m.Input.Focus()
}

// Blur unfocuses the input and closes the dropdown.
func (m *AutocompleteModel) Blur() {
	m.Input.Blur()
	m.Dismiss()
}

// Dismiss closes the dropdown without committing. Searches still in
// flight are ignored when they land.
func (m *AutocompleteModel) Dismiss() {
	m.seq++
	m.state = OverlayIdle
	m.results = nil
	m.total = 0
	m.highlight = -1
	m.offset = 0
	m.err = nil
}

// SetAvailableRows tells the overlay how much room the screen has on each
// side of the input.
func (m *AutocompleteModel) SetAvailableRows(above, below int) {
	m.rowsAbove = above
	m.rowsBelow = below
}

// PlaceAbove reports whether the dropdown opens above the input: only when
// the rows below cannot hold it and there is more room above.
func (m AutocompleteModel) PlaceAbove() bool {
	needed := m.dropdownHeight()
	if m.rowsBelow == 0 && m.rowsAbove == 0 {
		return false
	}
	return m.rowsBelow < needed && m.rowsAbove > m.rowsBelow
}

// Update handles keys, debounce ticks and search results.
func (m AutocompleteModel) Update(msg tea.Msg) (AutocompleteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case autocompleteDebounceMsg:
		if msg.id != m.id || msg.seq != m.seq {
			return m, nil
		}
		m.state = OverlayLoading
		m.err = nil
		return m, m.search(m.seq, m.Input.Value())

	case autocompleteResultMsg:
		if msg.id != m.id || msg.seq != m.seq {
			return m, nil
		}
		if msg.err != nil {
			m.state = OverlayError
			m.err = msg.err
			m.results = nil
			m.total = 0
			m.highlight = -1
			return m, nil
		}
		m.state = OverlayShowing
		m.total = len(msg.entities)
		m.results = msg.entities
		if len(m.results) > m.opts.MaxResults {
			m.results = m.results[:m.opts.MaxResults]
		}
		m.highlight = -1
		m.offset = 0
		return m, nil

	case tea.KeyMsg:
		if !m.Input.Focused() {
			return m, nil
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func (m AutocompleteModel) updateKeys(msg tea.KeyMsg) (AutocompleteModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.state == OverlayShowing && len(m.results) > 0 {
			m.highlight = (m.highlight + 1) % len(m.results)
			m.scrollToHighlight()
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.state == OverlayShowing && len(m.results) > 0 {
			if m.highlight <= 0 {
				m.highlight = len(m.results) - 1
			} else {
				m.highlight--
			}
			m.scrollToHighlight()
		}
		return m, nil

	case key.Matches(msg, m.keys.Commit):
		if m.state == OverlayShowing && m.highlight >= 0 && m.highlight < len(m.results) {
			return m.commit(m.results[m.highlight].ID)
		}
		if text := strings.TrimSpace(m.Input.Value()); text != "" {
			return m.commit(text)
		}
		return m, nil

	case key.Matches(msg, m.keys.Close):
		m.Dismiss()
		return m, nil
	}

	before := m.Input.Value()
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	if m.Input.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.inputChanged())
}

// inputChanged restarts the debounce window. Below MinChars the dropdown
// closes and nothing is scheduled.
func (m *AutocompleteModel) inputChanged() tea.Cmd {
	m.seq++
	m.highlight = -1
	if len([]rune(strings.TrimSpace(m.Input.Value()))) < m.opts.MinChars || m.Input.Value() == "" {
		m.state = OverlayIdle
		m.results = nil
		m.total = 0
		m.err = nil
		return nil
	}

	id, seq := m.id, m.seq
	return tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return autocompleteDebounceMsg{id: id, seq: seq}
	})
}

func (m AutocompleteModel) search(seq int, pattern string) tea.Cmd {
	searcher, domain, id := m.searcher, m.domainFilter, m.id
	return func() tea.Msg {
		entities, err := searcher.Search(context.Background(), domain, pattern)
		return autocompleteResultMsg{id: id, seq: seq, pattern: pattern, entities: entities, err: err}
	}
}

func (m AutocompleteModel) commit(entityID string) (AutocompleteModel, tea.Cmd) {
	m.Input.SetValue(entityID)
	m.Input.CursorEnd()
	m.Dismiss()
	id := m.id
	return m, func() tea.Msg {
		return EntityCommittedMsg{OverlayID: id, EntityID: entityID}
	}
}

func (m *AutocompleteModel) scrollToHighlight() {
	rows := m.opts.VisibleRows
	if m.highlight < m.offset {
		m.offset = m.highlight
	} else if m.highlight >= m.offset+rows {
		m.offset = m.highlight - rows + 1
	}
}

// dropdownHeight is the number of rows the open dropdown takes, borders
// included.
func (m AutocompleteModel) dropdownHeight() int {
	rows := len(m.results)
	if rows > m.opts.VisibleRows {
		rows = m.opts.VisibleRows
	}
	if rows == 0 {
		rows = 1
	}
	if m.total > len(m.results) {
		rows++
	}
	return rows + 2
}

// Footer returns the truncation note, or "" when every result is shown.
func (m AutocompleteModel) Footer() string {
	if m.state != OverlayShowing || m.total <= len(m.results) {
		return ""
	}
	return fmt.Sprintf("Showing %d of %d results. Type more to refine.", len(m.results), m.total)
}

// View renders the input and, when open, the dropdown on the side with
// more room.
func (m AutocompleteModel) View() string {
	input := m.Input.View()
	if m.state == OverlayIdle {
		return input
	}

	dropdown := OverlayBoxStyle.Render(m.renderDropdown())
	if m.PlaceAbove() {
		return lipgloss.JoinVertical(lipgloss.Left, dropdown, input)
	}
	return lipgloss.JoinVertical(lipgloss.Left, input, dropdown)
}

func (m AutocompleteModel) renderDropdown() string {
	switch m.state {
	case OverlayLoading:
		return OverlayFooterStyle.Render("Searching…")
	case OverlayError:
		return lipgloss.NewStyle().Foreground(ErrorColor).Render(backend.GetShortErrorMessage(m.err))
	}

	if len(m.results) == 0 {
		return OverlayFooterStyle.Render("No entities found")
	}

	end := m.offset + m.opts.VisibleRows
	if end > len(m.results) {
		end = len(m.results)
	}

	lines := make([]string, 0, end-m.offset+1)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderItem(m.results[i], i == m.highlight))
	}
	if footer := m.Footer(); footer != "" {
		lines = append(lines, OverlayFooterStyle.Render(footer))
	}
	return strings.Join(lines, "\n")
}

func (m AutocompleteModel) renderItem(e backend.Entity, selected bool) string {
	name := lipgloss.NewStyle().Foreground(SubtleColor).Render(e.DisplayName)
	line := e.ID
	if e.DisplayName != "" {
		line += "  " + name
	}
	if e.HasKnownState() {
		line += "  " + lipgloss.NewStyle().Foreground(AccentColor).Render(e.StateWithUnit())
	}
	if selected {
		return OverlaySelectedItemStyle.Render("→ " + line)
	}
	return OverlayItemStyle.Render(line)
}
