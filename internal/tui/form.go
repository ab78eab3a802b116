package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/refvalue"
	"github.com/dayahead/daocfg/internal/schema"
)

// OptionsDocument is the settings document the editor works on.
const OptionsDocument = "options"

// Backend is what the form needs from the DAO webserver.
type Backend interface {
	EntitySearcher
	SecretLister
	GetSchema(ctx context.Context) (*schema.Schema, error)
	GetSettings(ctx context.Context, name string) (json.RawMessage, error)
	SaveSettings(ctx context.Context, name string, doc json.RawMessage) error
}

// EntityCache is implemented by backends that keep a warm entity list.
// The form uses it to show the current state of referenced entities.
type EntityCache interface {
	Prefetch(ctx context.Context) bool
	CachedEntities() ([]backend.Entity, time.Time)
}

// FormOptions configure a FormModel.
type FormOptions struct {
	Help          schema.HelpCatalog
	Autocomplete  AutocompleteOptions
	ToastDuration time.Duration
	// Location is shown in the header, usually the webserver URL.
	Location string
}

type formLoadedMsg struct {
	schema *schema.Schema
	doc    any
	err    error
}

type entitiesWarmMsg struct {
	entities []backend.Entity
}

type formSavedMsg struct {
	raw []byte
	err error
}

type formKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding
	Save   key.Binding
	Reload key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Save, k.Reload, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Edit},
		{k.Save, k.Reload, k.Help, k.Quit},
	}
}

// FormModel lists every editable field of options.json and edits them
// inline.
type FormModel struct {
	backend  Backend
	deps     ControlDeps
	catalog  schema.HelpCatalog
	location string

	schema *schema.Schema
	doc    any
	fields []schema.Field
	// baseline is the document as last loaded or saved.
	baseline []byte

	Cursor int
	offset int

	loading   bool
	loadErr   error
	saving    bool
	dirty     bool
	quitArmed bool

	editing bool
	editor  FieldControl
	// beforeEdit is the encoded document when the editor opened; cancel
	// restores it, including keys the edit created.
	beforeEdit []byte

	// states holds the cached entities by ID, once prefetched.
	states map[string]backend.Entity

	showingHelp bool

	toast   ToastModel
	spinner spinner.Model

	Width  int
	Height int

	Help help.Model
	Keys formKeyMap
}

// NewFormModel creates the editor over b. Call Init to load.
func NewFormModel(b Backend, opts FormOptions) FormModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	if opts.Autocomplete == (AutocompleteOptions{}) {
		opts.Autocomplete = DefaultAutocompleteOptions()
	}

	keys := formKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "field help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return FormModel{
		backend: b,
		deps: ControlDeps{
			Entities:     b,
			Secrets:      b,
			Autocomplete: opts.Autocomplete,
		},
		catalog:  opts.Help,
		location: opts.Location,
		loading:  true,
		toast:    NewToastModel(opts.ToastDuration),
		spinner:  s,
		Help:     help.New(),
		Keys:     keys,
	}
}

// Init starts loading the schema and options.json.
func (m FormModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// Fields returns the flattened fields.
func (m FormModel) Fields() []schema.Field { return m.fields }

// Document returns the in-memory options document.
func (m FormModel) Document() any { return m.doc }

// Dirty reports unsaved changes.
func (m FormModel) Dirty() bool { return m.dirty }

// Editing reports whether a field editor is open.
func (m FormModel) Editing() bool { return m.editing }

// Editor returns the open field editor.
func (m FormModel) Editor() FieldControl { return m.editor }

// Toast returns the current notification.
func (m FormModel) Toast() ToastModel { return m.toast }

func (m FormModel) load() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx := context.Background()
		s, err := b.GetSchema(ctx)
		if err != nil {
			return formLoadedMsg{err: err}
		}
		raw, err := b.GetSettings(ctx, OptionsDocument)
		if err != nil {
			return formLoadedMsg{err: err}
		}
		doc, err := schema.DecodeDocument(raw)
		if err != nil {
			return formLoadedMsg{err: backend.NewParseError("load options", "options.json is not valid JSON", err)}
		}
		return formLoadedMsg{schema: s, doc: doc}
	}
}

func (m FormModel) prefetch() tea.Cmd {
	cache, ok := m.backend.(EntityCache)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		if !cache.Prefetch(context.Background()) {
			return nil
		}
		entities, _ := cache.CachedEntities()
		return entitiesWarmMsg{entities: entities}
	}
}

func (m FormModel) save() tea.Cmd {
	// Encode now: the document keeps changing while the request is in flight.
	raw, err := schema.EncodeDocument(m.doc)
	if err != nil {
		return func() tea.Msg { return formSavedMsg{err: err} }
	}
	b := m.backend
	return func() tea.Msg {
		return formSavedMsg{raw: raw, err: b.SaveSettings(context.Background(), OptionsDocument, raw)}
	}
}

// Update handles messages and updates the model
func (m FormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.layout()
		return m, nil

	case formLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.loadErr = msg.err
			logging.Warn("Failed to load settings", zap.Error(msg.err))
			return m, m.toast.Show(backend.GetShortErrorMessage(msg.err), ToastError)
		}
		m.loadErr = nil
		m.schema = msg.schema
		m.doc = msg.doc
		m.fields = m.schema.Fields(m.doc)
		m.baseline, _ = schema.EncodeDocument(m.doc)
		m.dirty = false
		m.editing = false
		if m.Cursor >= len(m.fields) {
			m.Cursor = 0
		}
		m.layout()
		return m, tea.Batch(
			m.toast.Show(fmt.Sprintf("Loaded %s.json: %d settings", OptionsDocument, len(m.fields)), ToastInfo),
			m.prefetch(),
		)

	case entitiesWarmMsg:
		m.states = make(map[string]backend.Entity, len(msg.entities))
		for _, e := range msg.entities {
			m.states[e.ID] = e
		}
		m.layout()
		return m, nil

	case formSavedMsg:
		m.saving = false
		if msg.err != nil {
			logging.Warn("Failed to save settings", zap.Error(msg.err))
			return m, m.toast.Show(backend.GetShortErrorMessage(msg.err), ToastError)
		}
		m.baseline = msg.raw
		m.refreshDirty()
		return m, m.toast.Show("Saved "+OptionsDocument+".json", ToastSuccess)

	case toastExpiredMsg:
		m.toast, _ = m.toast.Update(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.loading && !m.saving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FieldChangedMsg:
		return m, m.apply(msg.Path, msg.Value)

	case FieldCommittedMsg:
		m.editing = false
		cmd := m.apply(msg.Path, msg.Value)
		m.layout()
		return m, cmd

	case FieldCancelledMsg:
		m.editing = false
		cmd := m.restore(m.beforeEdit)
		m.layout()
		return m, cmd

	case tea.MouseMsg:
		if m.editing && msg.Action == tea.MouseActionPress {
			top, height := m.editorRows()
			if msg.Y < top || msg.Y >= top+height {
				m.editor.DismissOverlay()
			}
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.showingHelp {
			m.showingHelp = false
			return m, nil
		}
		if m.editing {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			m.layout()
			return m, cmd
		}
		return m.updateList(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		m.layout()
		return m, cmd
	}
	return m, nil
}

func (m FormModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	armed := m.quitArmed
	m.quitArmed = false

	switch {
	case key.Matches(msg, m.Keys.Quit):
		if m.dirty && !armed {
			m.quitArmed = true
			return m, m.toast.Show("Unsaved changes: press q again to discard, ctrl+s to save", ToastInfo)
		}
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Up):
		if len(m.fields) > 0 {
			m.Cursor = (m.Cursor - 1 + len(m.fields)) % len(m.fields)
			m.layout()
		}

	case key.Matches(msg, m.Keys.Down):
		if len(m.fields) > 0 {
			m.Cursor = (m.Cursor + 1) % len(m.fields)
			m.layout()
		}

	case key.Matches(msg, m.Keys.Edit):
		return m.startEditing()

	case key.Matches(msg, m.Keys.Save):
		if m.doc == nil || m.saving {
			return m, nil
		}
		m.saving = true
		return m, tea.Batch(m.save(), m.spinner.Tick)

	case key.Matches(msg, m.Keys.Reload):
		m.loading = true
		return m, tea.Batch(m.load(), m.spinner.Tick)

	case key.Matches(msg, m.Keys.Help):
		if len(m.fields) > 0 {
			m.showingHelp = true
		}
	}
	return m, nil
}

func (m FormModel) startEditing() (tea.Model, tea.Cmd) {
	if m.Cursor < 0 || m.Cursor >= len(m.fields) {
		return m, nil
	}
	field := m.fields[m.Cursor]
	value, _ := schema.Get(m.doc, field.Path)

	m.editor = NewFieldControl(field, value, m.deps)
	m.beforeEdit, _ = schema.EncodeDocument(m.doc)
	m.editing = true
	cmd := m.editor.Start()
	m.layout()
	return m, cmd
}

// apply writes value into the document.
func (m *FormModel) apply(path []string, value any) tea.Cmd {
	before, _ := schema.Get(m.doc, path)
	doc, err := schema.Set(m.doc, path, value)
	if err != nil {
		return m.toast.Show(err.Error(), ToastError)
	}
	m.doc = doc
	m.refreshDirty()
	if !sameValue(before, value) {
		logging.Debug("Field changed",
			zap.String("field", strings.Join(path, ".")),
			zap.String("mode", refvalue.DeriveMode(value).String()),
		)
	}
	return nil
}

// restore puts back an encoded document when the current one differs.
func (m *FormModel) restore(raw []byte) tea.Cmd {
	if raw == nil {
		return nil
	}
	if current, err := schema.EncodeDocument(m.doc); err == nil && bytes.Equal(current, raw) {
		return nil
	}
	doc, err := schema.DecodeDocument(raw)
	if err != nil {
		return m.toast.Show(err.Error(), ToastError)
	}
	m.doc = doc
	m.refreshDirty()
	return nil
}

// refreshDirty compares the document with the last loaded or saved one, so
// an edit that is undone no longer counts as a change.
func (m *FormModel) refreshDirty() {
	raw, err := schema.EncodeDocument(m.doc)
	m.dirty = err != nil || !bytes.Equal(raw, m.baseline)
}

// listHeight is the number of rows for the field list.
func (m FormModel) listHeight() int {
	h := ContentHeight(m.Height) - 2
	if m.toast.Visible() {
		h -= 3
	}
	if h < 3 {
		return 3
	}
	return h
}

// layout scrolls so the cursor (and an open editor) are visible and tells
// the editor how much room it has.
func (m *FormModel) layout() {
	rows := m.rows()
	line := cursorLine(rows, m.Cursor)
	if line < 0 {
		m.offset = 0
		return
	}

	span := 1
	if m.editing {
		span += lipgloss.Height(m.editor.View())
	}
	height := m.listHeight()
	if line < m.offset {
		m.offset = line
	}
	if line+span > m.offset+height {
		m.offset = line + span - height
	}
	if m.offset < 0 {
		m.offset = 0
	}

	if m.editing {
		above := line + 1 - m.offset
		below := height - above - 1
		m.editor.SetAvailableRows(above, below)
	}
}

// editorRows returns the screen rows the open editor occupies.
func (m FormModel) editorRows() (top, height int) {
	line := cursorLine(m.rows(), m.Cursor)
	top = contentTopRow + 2 + line + 1 - m.offset
	return top, lipgloss.Height(m.editor.View())
}

type formRow struct {
	field int
	text  string
}

// rows are the section headings and field lines, without the editor.
func (m FormModel) rows() []formRow {
	var rows []formRow
	section := ""
	for i, f := range m.fields {
		if s := f.Section(); s != section || i == 0 {
			section = s
			if s != "" {
				rows = append(rows, formRow{field: -1, text: SectionStyle.Render(sectionTitle(f.Path[:len(f.Path)-1]))})
			}
		}
		rows = append(rows, formRow{field: i, text: m.renderField(i)})
	}
	return rows
}

func cursorLine(rows []formRow, cursor int) int {
	for i, r := range rows {
		if r.field == cursor {
			return i
		}
	}
	return -1
}

func sectionTitle(path []string) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		if n, err := strconv.Atoi(seg); err == nil {
			parts[i] = fmt.Sprintf("#%d", n+1)
		} else {
			parts[i] = schema.FieldTitle(seg)
		}
	}
	return strings.Join(parts, " › ")
}

func (m FormModel) renderField(i int) string {
	f := m.fields[i]
	selected := i == m.Cursor

	labelStyle := lipgloss.NewStyle().Width(30).Foreground(TextColor)
	arrow := "  "
	if selected {
		labelStyle = labelStyle.Foreground(HighlightColor).Bold(true)
		arrow = "→ "
	}

	value, _ := schema.Get(m.doc, f.Path)
	line := lipgloss.JoinHorizontal(lipgloss.Left,
		arrow,
		labelStyle.Render(f.Title),
		renderValue(f, value),
	)
	if state := m.entityState(value); f.Entity && state != "" {
		line += lipgloss.NewStyle().Foreground(SubtleColor).Render("  = " + state)
	}
	if chip := renderChip(f); chip != "" {
		line += " " + chip
	}
	return line
}

// entityState is the cached state of a referenced entity, with its unit.
func (m FormModel) entityState(v any) string {
	id, ok := v.(string)
	if !ok || !refvalue.IsEntityRef(id) {
		return ""
	}
	e, ok := m.states[id]
	if !ok || e.State == "" {
		return ""
	}
	if e.Unit != "" {
		return e.State + " " + e.Unit
	}
	return e.State
}

func renderValue(f schema.Field, v any) string {
	subtle := lipgloss.NewStyle().Foreground(SubtleColor)
	switch refvalue.DeriveMode(v) {
	case refvalue.ModeSecret:
		if f.Secret {
			return lipgloss.NewStyle().Foreground(WarningColor).Render(FormatValue(v))
		}
	case refvalue.ModeEntity:
		if f.Entity {
			return lipgloss.NewStyle().Foreground(AccentColor).Render(FormatValue(v))
		}
	}
	switch {
	case v == nil:
		return subtle.Render("(not set)")
	case v == "":
		return subtle.Render("(empty)")
	case f.Masked():
		return "••••••••"
	}
	return FormatValue(v)
}

func renderChip(f schema.Field) string {
	switch {
	case f.Secret:
		return SecretChipStyle.Render("Secret")
	case f.Entity && f.EntityAllowValue:
		return FlexChipStyle.Render("Flex")
	case f.Entity:
		return EntityChipStyle.Render("Entity")
	}
	return ""
}

// View renders the form
func (m FormModel) View() string {
	if m.showingHelp && m.Cursor < len(m.fields) {
		return RenderModal(RenderHelpTooltip(m.fields[m.Cursor], m.catalog, m.Width), m.Width, m.Height)
	}

	footer := m.Help.View(m.Keys)
	if m.editing {
		footer = m.Help.View(m.editor.Keys())
	}
	return RenderApplicationContainer(m.renderContent(), footer, m.location, m.Width, m.Height)
}

func (m FormModel) renderContent() string {
	width := m.Width - 4
	if m.Width <= 0 {
		width = MinTerminalWidth - 4
	}

	var status string
	switch {
	case m.loading:
		status = m.spinner.View() + " Loading " + OptionsDocument + ".json…"
	case m.saving:
		status = m.spinner.View() + " Saving…"
	case m.loadErr != nil:
		// Long errors are cut so the retry hint keeps its own line.
		status = lipgloss.NewStyle().Foreground(ErrorColor).MaxWidth(width).Render("✗ "+backend.GetShortErrorMessage(m.loadErr)) +
			"\n" + SubtitleStyle.Render("ctrl+r to retry")
	case m.dirty:
		status = lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("⚠ MODIFIED") +
			SubtitleStyle.Render(fmt.Sprintf("  %s.json · %d settings", OptionsDocument, len(m.fields)))
	default:
		status = SubtitleStyle.Render(fmt.Sprintf("%s.json · %d settings", OptionsDocument, len(m.fields)))
	}

	divider := lipgloss.NewStyle().Foreground(BorderColor).Render(strings.Repeat("─", min(60, width)))

	var lines []string
	for _, r := range m.rows() {
		lines = append(lines, r.text)
		if m.editing && r.field == m.Cursor {
			lines = append(lines, strings.Split(InlineEditorStyle().Render(m.editor.View()), "\n")...)
		}
	}

	height := m.listHeight()
	end := m.offset + height
	if end > len(lines) {
		end = len(lines)
	}
	start := m.offset
	if start > end {
		start = end
	}
	visible := lines[start:end]

	parts := []string{status, divider, strings.Join(visible, "\n")}
	if m.toast.Visible() {
		parts = append(parts, m.toast.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
