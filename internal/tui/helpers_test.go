package tui

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dayahead/daocfg/internal/backend"
)

// fakeSearcher serves a fixed entity list and records every pattern.
type fakeSearcher struct {
	mu       sync.Mutex
	entities []backend.Entity
	err      error
	patterns []string
}

func (f *fakeSearcher) Search(_ context.Context, domainFilter, pattern string) ([]backend.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	if f.err != nil {
		return nil, f.err
	}

	domains := backend.ParseDomainFilter(domainFilter)
	out := []backend.Entity{}
	for _, e := range f.entities {
		if !e.MatchesDomain(domains) {
			continue
		}
		if strings.Contains(strings.ToLower(e.ID+" "+e.DisplayName), strings.ToLower(pattern)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSearcher) Patterns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.patterns...)
}

// fakeLister serves secret keys.
type fakeLister struct {
	keys []string
	err  error
}

func (f *fakeLister) SecretKeys(context.Context) ([]string, error) {
	return f.keys, f.err
}

var testEntities = []backend.Entity{
	{ID: "sensor.temp_1", DisplayName: "Living room temperature", Domain: "sensor", State: "21.5", Unit: "°C"},
	{ID: "sensor.temp_2", DisplayName: "Garage temperature", Domain: "sensor", State: "unavailable"},
	{ID: "sensor.livingroom_humidity", DisplayName: "Living room humidity", Domain: "sensor", State: "48", Unit: "%"},
	{ID: "input_number.battery_upper_limit", DisplayName: "Battery upper limit", Domain: "input_number", State: "95"},
	{ID: "switch.boiler", DisplayName: "Boiler", Domain: "switch", State: "off"},
}

// run executes cmd and returns the messages it produced, flattening
// batches.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyCtrlT = tea.KeyMsg{Type: tea.KeyCtrlT}
	keyCtrlS = tea.KeyMsg{Type: tea.KeyCtrlS}
)

// staticCursors stops cursor blinking so commands return immediately.
func staticCursors(c *FieldControl) {
	c.input.Cursor.SetMode(cursor.CursorStatic)
	c.entity.Input.Cursor.SetMode(cursor.CursorStatic)
	c.secret.Filter.Cursor.SetMode(cursor.CursorStatic)
}

func firstOf[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
