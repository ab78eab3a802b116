package tui

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/fakebackend"
	"github.com/dayahead/daocfg/internal/schema"
)

type formHarness struct {
	srv *fakebackend.Server
	ts  *httptest.Server
}

func newTestForm(t *testing.T) (*formHarness, FormModel) {
	t.Helper()
	fixture, err := fakebackend.LoadDemo()
	require.NoError(t, err)
	return newTestFormWith(t, fixture)
}

func newTestFormWith(t *testing.T, fixture *fakebackend.Fixture) (*formHarness, FormModel) {
	t.Helper()
	help, err := fakebackend.DemoHelp()
	require.NoError(t, err)

	srv := fakebackend.New(fixture)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	m := NewFormModel(backend.NewClientWithURL(ts.URL), FormOptions{
		Help:          help,
		Autocomplete:  testAutocompleteOptions(),
		ToastDuration: time.Millisecond,
		Location:      ts.URL,
	})
	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = update(m, m.load()())
	require.NoError(t, m.loadErr)
	return &formHarness{srv: srv, ts: ts}, m
}

func update(m FormModel, msg tea.Msg) FormModel {
	updated, _ := m.Update(msg)
	return updated.(FormModel)
}

func updateCmd(m FormModel, msg tea.Msg) (FormModel, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(FormModel), cmd
}

// feed runs cmd and routes the resulting messages back into m until quiet.
// Spinner frames and toast expiry are dropped so assertions see the toast.
func feed(t *testing.T, m FormModel, cmd tea.Cmd) FormModel {
	t.Helper()
	queue := run(cmd)
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "message loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case spinner.TickMsg, toastExpiredMsg:
			continue
		}
		var next tea.Cmd
		m, next = updateCmd(m, msg)
		queue = append(queue, run(next)...)
	}
	return m
}

func selectField(t *testing.T, m FormModel, id string) FormModel {
	t.Helper()
	for i, f := range m.Fields() {
		if f.ID() == id {
			m.Cursor = i
			return m
		}
	}
	t.Fatalf("no field %q", id)
	return m
}

// openEditor presses enter on the selected field and restarts the editor
// with non-blinking cursors.
func openEditor(t *testing.T, m FormModel) (FormModel, tea.Cmd) {
	t.Helper()
	m, _ = updateCmd(m, keyEnter)
	require.True(t, m.Editing())
	staticCursors(&m.editor)
	return m, m.editor.Start()
}

func valueAt(m FormModel, id string) any {
	v, _ := schema.Get(m.Document(), strings.Split(id, "."))
	return v
}

func TestForm_Load(t *testing.T) {
	_, m := newTestForm(t)

	ids := make([]string, 0, len(m.Fields()))
	for _, f := range m.Fields() {
		ids = append(ids, f.ID())
	}
	assert.Len(t, ids, 15)
	assert.Contains(t, ids, "battery.0.upper limit")
	assert.Equal(t, "Loaded options.json: 15 settings", m.Toast().Text())
	assert.False(t, m.Dirty())

	view := m.View()
	assert.Contains(t, view, "Battery › #1")
	assert.Contains(t, view, "Flex")
	assert.Contains(t, view, "!secret ha_token")
}

func TestForm_EditNumberAndSave(t *testing.T) {
	h, m := newTestForm(t)
	m = selectField(t, m, "grid.max_power")

	m, cmd := openEditor(t, m)
	m = feed(t, m, cmd)
	assert.Equal(t, "17", m.editor.input.Value())

	m.editor.input.SetValue("12.5")
	m, cmd = updateCmd(m, keyEnter)
	m = feed(t, m, cmd)

	assert.False(t, m.Editing())
	assert.True(t, m.Dirty())
	assert.Equal(t, json.Number("12.5"), valueAt(m, "grid.max_power"))
	assert.Contains(t, m.View(), "MODIFIED")

	m, cmd = updateCmd(m, keyCtrlS)
	m = feed(t, m, cmd)
	assert.False(t, m.Dirty())
	assert.Equal(t, "Saved options.json", m.Toast().Text())

	raw, ok := h.srv.Document("options")
	require.True(t, ok)
	saved, err := schema.DecodeDocument(raw)
	require.NoError(t, err)
	got, _ := schema.Get(saved, []string{"grid", "max_power"})
	assert.Equal(t, json.Number("12.5"), got)
	token, _ := schema.Get(saved, []string{"homeassistant", "token"})
	assert.Equal(t, "!secret ha_token", token, "untouched references survive a save")
}

func TestForm_InvalidNumberKeepsEditorOpen(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "grid.max_power")
	m, _ = openEditor(t, m)

	m.editor.input.SetValue("12.55")
	m, cmd := updateCmd(m, keyEnter)
	m = feed(t, m, cmd)

	assert.True(t, m.Editing())
	assert.False(t, m.Dirty())
	assert.Contains(t, m.View(), "must be a multiple of 0.1")
}

func TestForm_ToggleThenCancelRestores(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "battery.0.upper limit")
	m, cmd := openEditor(t, m)
	m = feed(t, m, cmd)

	m, cmd = updateCmd(m, keyCtrlT)
	m = feed(t, m, cmd)
	assert.True(t, m.Editing(), "toggling keeps the editor open")
	assert.Equal(t, 95.0, valueAt(m, "battery.0.upper limit"), "literal default from the schema")
	assert.True(t, m.Dirty())

	m, cmd = updateCmd(m, keyEsc)
	m = feed(t, m, cmd)
	assert.False(t, m.Editing())
	assert.Equal(t, "input_number.battery_upper_limit", valueAt(m, "battery.0.upper limit"))
	assert.False(t, m.Dirty(), "undoing the change clears the modified flag")
}

func TestForm_NumberWithoutMultipleOf(t *testing.T) {
	h, m := newTestForm(t)
	m = selectField(t, m, "battery.0.capacity")
	m, _ = openEditor(t, m)

	m.editor.input.SetValue("10.2345")
	m, cmd := updateCmd(m, keyEnter)
	m = feed(t, m, cmd)
	assert.False(t, m.Editing())
	assert.Equal(t, json.Number("10.2345"), valueAt(m, "battery.0.capacity"))

	m, cmd = updateCmd(m, keyCtrlS)
	m = feed(t, m, cmd)
	require.False(t, m.Dirty())
	raw, ok := h.srv.Document("options")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"capacity": 10.2345`)
}

func TestForm_CancelOnAbsentFieldLeavesDocument(t *testing.T) {
	fixture := &fakebackend.Fixture{
		Schema: json.RawMessage(`{"type": "object", "properties": {
			"grid": {"type": "object", "properties": {
				"max_power": {"type": ["number", "string"], "haEntityDomains": "input_number", "haEntityAllowValue": true}
			}}
		}}`),
		Documents: map[string]json.RawMessage{"options": json.RawMessage(`{"other": 1}`)},
	}
	_, m := newTestFormWith(t, fixture)
	before, err := schema.EncodeDocument(m.Document())
	require.NoError(t, err)

	m = selectField(t, m, "grid.max_power")
	m, cmd := openEditor(t, m)
	m = feed(t, m, cmd)
	m, cmd = updateCmd(m, keyCtrlT)
	m = feed(t, m, cmd)
	require.True(t, m.Dirty(), "switching modes writes the field")

	m, cmd = updateCmd(m, keyEsc)
	m = feed(t, m, cmd)
	assert.False(t, m.Editing())
	assert.False(t, m.Dirty())

	after, err := schema.EncodeDocument(m.Document())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	_, ok := schema.Get(m.Document(), []string{"grid"})
	assert.False(t, ok, "no intermediate object is left behind")
}

func TestForm_ShowsEntityStateOncePrefetched(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "battery.0.entity actual level")
	assert.NotContains(t, m.View(), "= 64 %")

	m, cmd := updateCmd(m, m.load()())
	m = feed(t, m, cmd)
	assert.Contains(t, m.View(), "= 64 %", "sensor.battery_soc state from the entity cache")
}

func typeForm(t *testing.T, m FormModel, text string) FormModel {
	t.Helper()
	var cmds []tea.Cmd
	for _, r := range text {
		var cmd tea.Cmd
		m, cmd = updateCmd(m, runes(string(r)))
		cmds = append(cmds, cmd)
	}
	return feed(t, m, tea.Batch(cmds...))
}

func TestForm_EntityAutocomplete(t *testing.T) {
	h, m := newTestForm(t)
	m = selectField(t, m, "battery.0.entity actual level")
	m, cmd := openEditor(t, m)
	m = feed(t, m, cmd)
	assert.Equal(t, "sensor.battery_soc", m.editor.entity.Value())

	m.editor.entity.SetValue("")
	m = typeForm(t, m, "temp")

	domain, pattern := h.srv.LastSearch()
	assert.Equal(t, "sensor", domain)
	assert.Equal(t, "temp", pattern)
	require.Len(t, m.editor.entity.Results(), 2)

	m, cmd = updateCmd(m, keyDown)
	m = feed(t, m, cmd)
	m, cmd = updateCmd(m, keyEnter)
	m = feed(t, m, cmd)

	assert.False(t, m.Editing())
	assert.Equal(t, "sensor.temp_1", valueAt(m, "battery.0.entity actual level"))
	assert.True(t, m.Dirty())
}

func TestForm_ClickOutsideDismissesOverlay(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "battery.0.entity actual level")
	m, _ = openEditor(t, m)

	m.editor.entity.SetValue("")
	m = typeForm(t, m, "temp")
	require.True(t, m.editor.entity.Open())

	m = update(m, tea.MouseMsg{X: 1, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.False(t, m.editor.entity.Open())
	assert.True(t, m.Editing(), "the edit itself stays open")
	assert.Equal(t, "sensor.battery_soc", valueAt(m, "battery.0.entity actual level"))
}

func TestForm_SecretField(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "database.password")
	m, cmd := openEditor(t, m)
	m = feed(t, m, cmd)

	require.Equal(t, []string{"db_password", "ha_token", "meteoserver-key", "tibber_api_token"}, m.editor.secret.Matches())
	assert.Equal(t, 0, m.editor.secret.Highlight(), "current key highlighted")

	m = typeForm(t, m, "tibber")
	m, cmd = updateCmd(m, keyEnter)
	m = feed(t, m, cmd)
	assert.Equal(t, "!secret tibber_api_token", valueAt(m, "database.password"))
	assert.NotContains(t, m.View(), "tibber-secret-value")
}

func TestForm_SaveFailureKeepsChanges(t *testing.T) {
	h, m := newTestForm(t)
	m = selectField(t, m, "strategy.optimize")
	m, _ = openEditor(t, m)
	m, cmd := updateCmd(m, keyDown)
	m = feed(t, m, cmd)
	m, cmd = updateCmd(m, keyEnter)
	m = feed(t, m, cmd)
	require.True(t, m.Dirty())

	h.ts.Close()
	m, cmd = updateCmd(m, keyCtrlS)
	m = feed(t, m, cmd)

	assert.True(t, m.Dirty())
	assert.Equal(t, "minimize consumption", valueAt(m, "strategy.optimize"))
	assert.NotEqual(t, "Saved options.json", m.Toast().Text())
	assert.NotEmpty(t, m.Toast().Text())
}

func TestForm_QuitGuard(t *testing.T) {
	_, m := newTestForm(t)

	_, cmd := updateCmd(m, runes("q"))
	_, quit := firstOf[tea.QuitMsg](run(cmd))
	assert.True(t, quit, "a clean form quits at once")

	m = selectField(t, m, "database.engine")
	m, _ = openEditor(t, m)
	m, cmd = updateCmd(m, keyDown)
	m = feed(t, m, cmd)
	m, cmd = updateCmd(m, keyEnter)
	m = feed(t, m, cmd)
	require.True(t, m.Dirty())

	m, cmd = updateCmd(m, runes("q"))
	msgs := run(cmd)
	_, quit = firstOf[tea.QuitMsg](msgs)
	assert.False(t, quit)
	assert.Contains(t, m.Toast().Text(), "press q again")

	_, cmd = updateCmd(m, runes("q"))
	_, quit = firstOf[tea.QuitMsg](run(cmd))
	assert.True(t, quit)
}

func TestForm_HelpModal(t *testing.T) {
	_, m := newTestForm(t)
	m = selectField(t, m, "homeassistant.token")

	m = update(m, runes("?"))
	assert.Contains(t, m.View(), "long-lived access token")

	m = update(m, runes("x"))
	assert.NotContains(t, m.View(), "press any key to close")
}

func TestForm_LoadError(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	m := NewFormModel(backend.NewClientWithURL(url), FormOptions{ToastDuration: time.Millisecond})
	m = update(m, m.load()())

	assert.Error(t, m.loadErr)
	assert.Empty(t, m.Fields())
	assert.Contains(t, m.View(), "ctrl+r to retry")

	m = update(m, tea.WindowSizeMsg{Width: MinTerminalWidth, Height: 24})
	status := strings.Split(m.renderContent(), "\n")[:2]
	assert.LessOrEqual(t, lipgloss.Width(status[0]), MinTerminalWidth-4)
	assert.Contains(t, status[1], "ctrl+r to retry")
	assert.Contains(t, m.View(), "ctrl+r to retry")
}

func TestForm_NavigationWraps(t *testing.T) {
	_, m := newTestForm(t)

	m = update(m, keyUp)
	assert.Equal(t, len(m.Fields())-1, m.Cursor)
	m = update(m, keyDown)
	assert.Equal(t, 0, m.Cursor)
}
