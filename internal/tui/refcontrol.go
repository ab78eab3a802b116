package tui

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dayahead/daocfg/internal/refvalue"
	"github.com/dayahead/daocfg/internal/schema"
)

// ControlDeps are the collaborators of a FieldControl.
type ControlDeps struct {
	Entities     EntitySearcher
	Secrets      SecretLister
	Autocomplete AutocompleteOptions
}

// FieldChangedMsg reports a value change that keeps the editor open, such
// as a mode toggle.
type FieldChangedMsg struct {
	Path  []string
	Value any
}

// FieldCommittedMsg reports the final value of an edit.
type FieldCommittedMsg struct {
	Path  []string
	Value any
}

// FieldCancelledMsg reports that the user abandoned the edit.
type FieldCancelledMsg struct {
	Path []string
}

type controlKeyMap struct {
	Toggle key.Binding
	Commit key.Binding
	Cancel key.Binding
}

func (k controlKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Commit, k.Toggle, k.Cancel}
}

func (k controlKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Commit, k.Toggle, k.Cancel}}
}

// FieldControl edits one field. Fields whose schema opts in can switch
// between a literal and a reference; the displayed mode is always derived
// from the value.
type FieldControl struct {
	Field schema.Field

	value any
	// pendingReference is set between switching to reference mode and
	// picking one, while the value is still "".
	pendingReference bool

	choice   ChoiceModel
	input    textinput.Model
	entity   AutocompleteModel
	secret   SecretPickerModel
	inputErr string

	keys controlKeyMap
}

// NewFieldControl creates an editor for field holding value.
func NewFieldControl(field schema.Field, value any, deps ControlDeps) FieldControl {
	opts := deps.Autocomplete
	if opts == (AutocompleteOptions{}) {
		opts = DefaultAutocompleteOptions()
	}

	input := textinput.New()
	input.CharLimit = 512
	input.Width = 48
	if field.Masked() {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}

	c := FieldControl{
		Field:  field,
		value:  value,
		input:  input,
		entity: NewAutocompleteModel(deps.Entities, field.DomainFilter(), opts),
		secret: NewSecretPickerModel(deps.Secrets),
		keys: controlKeyMap{
			Toggle: key.NewBinding(
				key.WithKeys("ctrl+t"),
				key.WithHelp("ctrl+t", "literal/reference"),
			),
			Commit: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "apply"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
	}
	if !field.AllowsToggle() {
		c.keys.Toggle.SetEnabled(false)
	}
	c.syncEditors()
	return c
}

// Value returns the field value as it would be written to the document.
func (c FieldControl) Value() any { return c.value }

// Keys returns the control's key bindings for the help bar.
func (c FieldControl) Keys() help.KeyMap { return c.keys }

// Mode derives the editing mode from the value: a reference when the value
// has the shape of the reference kind the field accepts.
func (c FieldControl) Mode() refvalue.Mode {
	accepts := c.Field.ReferenceMode()
	if accepts == refvalue.ModeLiteral {
		return refvalue.ModeLiteral
	}
	if refvalue.DeriveMode(c.value) == accepts {
		return accepts
	}
	if c.Field.ReferenceOnly() {
		return accepts
	}
	if c.pendingReference && c.value == "" {
		return accepts
	}
	return refvalue.ModeLiteral
}

// SetValue replaces the value, e.g. after a reload.
func (c *FieldControl) SetValue(v any) {
	c.value = v
	c.pendingReference = false
	c.syncEditors()
}

// Start focuses the editor for the current mode.
func (c *FieldControl) Start() tea.Cmd {
	return c.focus()
}

// Toggle switches between literal and reference mode. Going to reference
// clears the value; going back to literal resets it to the literal
// default, never reusing the reference text.
func (c *FieldControl) Toggle() tea.Cmd {
	if !c.Field.AllowsToggle() {
		return nil
	}
	if c.Mode().IsReference() {
		c.value = refvalue.LiteralDefault(c.Field.LiteralSpec())
		c.pendingReference = false
	} else {
		c.value = ""
		c.pendingReference = true
	}
	c.inputErr = ""
	c.syncEditors()
	return tea.Batch(c.focus(), c.changed())
}

// DismissOverlay closes an open dropdown without ending the edit.
func (c *FieldControl) DismissOverlay() {
	c.entity.Dismiss()
}

// SetAvailableRows forwards the room around the editor to the entity
// overlay.
func (c *FieldControl) SetAvailableRows(above, below int) {
	c.entity.SetAvailableRows(above, below)
}

// Update routes input to the editor of the current mode.
func (c FieldControl) Update(msg tea.Msg) (FieldControl, tea.Cmd) {
	switch msg := msg.(type) {
	case EntityCommittedMsg:
		if msg.OverlayID != c.entity.ID() {
			return c, nil
		}
		c.value = msg.EntityID
		c.pendingReference = false
		return c, c.committed()

	case SecretCommittedMsg:
		if msg.PickerID != c.secret.ID() {
			return c, nil
		}
		c.value = msg.Value
		c.pendingReference = false
		return c, c.committed()

	case tea.KeyMsg:
		return c.updateKeys(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	c.entity, cmd = c.entity.Update(msg)
	cmds = append(cmds, cmd)
	c.secret, cmd = c.secret.Update(msg)
	cmds = append(cmds, cmd)
	c.input, cmd = c.input.Update(msg)
	cmds = append(cmds, cmd)
	return c, tea.Batch(cmds...)
}

func (c FieldControl) updateKeys(msg tea.KeyMsg) (FieldControl, tea.Cmd) {
	if key.Matches(msg, c.keys.Toggle) {
		cmd := c.Toggle()
		return c, cmd
	}

	mode := c.Mode()
	if key.Matches(msg, c.keys.Cancel) {
		if mode == refvalue.ModeEntity && c.entity.Open() {
			var cmd tea.Cmd
			c.entity, cmd = c.entity.Update(msg)
			return c, cmd
		}
		path := c.Field.Path
		c.entity.Blur()
		c.secret.Deactivate()
		return c, func() tea.Msg { return FieldCancelledMsg{Path: path} }
	}

	var cmd tea.Cmd
	switch mode {
	case refvalue.ModeEntity:
		c.entity, cmd = c.entity.Update(msg)
	case refvalue.ModeSecret:
		c.secret, cmd = c.secret.Update(msg)
	default:
		return c.updateLiteral(msg)
	}
	return c, cmd
}

func (c FieldControl) updateLiteral(msg tea.KeyMsg) (FieldControl, tea.Cmd) {
	switch c.Field.Kind {
	case refvalue.LiteralEnum, refvalue.LiteralBool:
		if key.Matches(msg, c.keys.Commit) {
			c.value = c.choice.Selected()
			return c, c.committed()
		}
		var cmd tea.Cmd
		c.choice, cmd = c.choice.Update(msg)
		return c, cmd

	case refvalue.LiteralNumber:
		if key.Matches(msg, c.keys.Commit) {
			v, err := ParseNumber(c.input.Value(), c.Field)
			if err != nil {
				c.inputErr = err.Error()
				return c, nil
			}
			c.value = v
			return c, c.committed()
		}

	default:
		if key.Matches(msg, c.keys.Commit) {
			c.value = c.input.Value()
			c.pendingReference = false
			return c, c.committed()
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	c.inputErr = ""
	return c, cmd
}

func (c FieldControl) committed() tea.Cmd {
	path, value := c.Field.Path, c.value
	return func() tea.Msg { return FieldCommittedMsg{Path: path, Value: value} }
}

func (c FieldControl) changed() tea.Cmd {
	path, value := c.Field.Path, c.value
	return func() tea.Msg { return FieldChangedMsg{Path: path, Value: value} }
}

// syncEditors loads the value into every sub-editor.
func (c *FieldControl) syncEditors() {
	switch c.Field.Kind {
	case refvalue.LiteralEnum:
		c.choice = NewChoiceModel(c.Field.Options, c.value)
	case refvalue.LiteralBool:
		c.choice = NewChoiceModel([]any{false, true}, c.value)
	}

	text := ""
	if refvalue.DeriveMode(c.value) == refvalue.ModeLiteral || c.Field.ReferenceMode() == refvalue.ModeLiteral {
		if c.value != nil {
			text = FormatValue(c.value)
		}
	}
	c.input.SetValue(text)
	c.input.CursorEnd()

	ref := ""
	if s, ok := c.value.(string); ok && refvalue.IsEntityRef(s) {
		ref = s
	}
	c.entity.SetValue(ref)
}

func (c *FieldControl) focus() tea.Cmd {
	switch c.Mode() {
	case refvalue.ModeEntity:
		c.input.Blur()
		c.secret.Deactivate()
		return c.entity.Focus()
	case refvalue.ModeSecret:
		c.input.Blur()
		c.entity.Blur()
		current, _ := refvalue.DecodeSecret(fmt.Sprint(c.value))
		return c.secret.Activate(current)
	default:
		c.entity.Blur()
		c.secret.Deactivate()
		if c.Field.Kind == refvalue.LiteralNumber || c.Field.Kind == refvalue.LiteralString {
			return c.input.Focus()
		}
		return nil
	}
}

// View renders the mode switch, the active editor and any input error.
func (c FieldControl) View() string {
	var lines []string

	if c.Field.AllowsToggle() {
		lines = append(lines, c.renderModeSwitch())
	}

	switch c.Mode() {
	case refvalue.ModeEntity:
		lines = append(lines, c.entity.View())
	case refvalue.ModeSecret:
		lines = append(lines, c.secret.View())
	default:
		switch c.Field.Kind {
		case refvalue.LiteralEnum, refvalue.LiteralBool:
			lines = append(lines, c.choice.View())
		default:
			lines = append(lines, c.input.View())
			if hint := c.rangeHint(); hint != "" {
				lines = append(lines, SubtitleStyle.Render(hint))
			}
		}
	}

	if c.inputErr != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(ErrorColor).Render("✗ "+c.inputErr))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (c FieldControl) renderModeSwitch() string {
	literal, reference := "Literal", "Entity"
	if c.Field.Secret {
		reference = "Secret"
	}
	active := lipgloss.NewStyle().Foreground(HighlightColor).Bold(true)
	if c.Mode().IsReference() {
		reference = active.Render("[" + reference + "]")
		literal = " " + literal + " "
	} else {
		literal = active.Render("[" + literal + "]")
		reference = " " + reference + " "
	}
	return literal + " " + reference + SubtitleStyle.Render("  ctrl+t to switch")
}

func (c FieldControl) rangeHint() string {
	if c.Field.Kind != refvalue.LiteralNumber {
		return ""
	}
	var parts []string
	if c.Field.Minimum != nil {
		parts = append(parts, "min "+formatNumber(*c.Field.Minimum))
	}
	if c.Field.Maximum != nil {
		parts = append(parts, "max "+formatNumber(*c.Field.Maximum))
	}
	if step := c.Field.Step(); step > 0 {
		parts = append(parts, "step "+formatNumber(step))
	}
	return strings.Join(parts, " · ")
}

// ParseNumber validates numeric input against the field's bounds and its
// declared multipleOf. The input text is kept as typed when it is already a
// JSON number.
func ParseNumber(text string, field schema.Field) (json.Number, error) {
	text = strings.TrimSpace(text)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("enter a number")
	}
	if field.Integer && v != math.Trunc(v) {
		return "", fmt.Errorf("enter a whole number")
	}
	if field.Minimum != nil && v < *field.Minimum {
		return "", fmt.Errorf("must be at least %s", formatNumber(*field.Minimum))
	}
	if field.Maximum != nil && v > *field.Maximum {
		return "", fmt.Errorf("must be at most %s", formatNumber(*field.Maximum))
	}
	if step := field.MultipleOf; step != nil && *step > 0 {
		q := v / *step
		if math.Abs(q-math.Round(q)) > 1e-6*math.Max(1, math.Abs(q)) {
			return "", fmt.Errorf("must be a multiple of %s", formatNumber(*step))
		}
	}
	if !json.Valid([]byte(text)) {
		text = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return json.Number(text), nil
}

// FormatValue renders a document value for display and editing.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return string(v)
	case float64:
		return formatNumber(v)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
