package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ChoiceModel is a closed choice among fixed options (enum values, or
// true/false).
type ChoiceModel struct {
	Options []any
	Cursor  int
	keys    autocompleteKeyMap
}

// NewChoiceModel creates a choice with the cursor on current, or on the
// first option when current is not among them.
func NewChoiceModel(options []any, current any) ChoiceModel {
	m := ChoiceModel{Options: options, keys: newAutocompleteKeyMap()}
	for i, o := range options {
		if sameValue(o, current) {
			m.Cursor = i
			break
		}
	}
	return m
}

// Selected returns the option under the cursor.
func (m ChoiceModel) Selected() any {
	if m.Cursor < 0 || m.Cursor >= len(m.Options) {
		return nil
	}
	return m.Options[m.Cursor]
}

// Update moves the cursor circularly.
func (m ChoiceModel) Update(msg tea.Msg) (ChoiceModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.Options) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Down), keyMsg.String() == "j", keyMsg.String() == "tab":
		m.Cursor = (m.Cursor + 1) % len(m.Options)
	case key.Matches(keyMsg, m.keys.Up), keyMsg.String() == "k":
		m.Cursor = (m.Cursor - 1 + len(m.Options)) % len(m.Options)
	}
	return m, nil
}

// View renders the options inline: "( ) http  (•) https".
func (m ChoiceModel) View() string {
	parts := make([]string, len(m.Options))
	for i, o := range m.Options {
		if i == m.Cursor {
			parts[i] = OverlaySelectedItemStyle.Render("(•) " + FormatValue(o))
		} else {
			parts[i] = "( ) " + FormatValue(o)
		}
	}
	return strings.Join(parts, "  ")
}

// sameValue compares document values. Numbers compare by value, whether
// they come from the document (json.Number) or the schema (float64, int).
func sameValue(a, b any) bool {
	if x, ok := numericValue(a); ok {
		if y, ok := numericValue(b); ok {
			return x == y
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
