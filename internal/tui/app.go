package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/logging"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenConnect Screen = "connect"
	ScreenForm    Screen = "form"
)

// AppOptions wire the application to the outside world.
type AppOptions struct {
	// Connect builds a backend for a webserver root URL.
	Connect func(baseURL string) (Backend, error)

	// OnConnect runs after a webserver is picked on the connect screen,
	// typically to remember it in the registry. Errors are logged only.
	OnConnect func(name, baseURL, source string) error

	// Scanner and ScanDuration drive the connect screen.
	Scanner      ScannerFunc
	ScanDuration time.Duration

	Form FormOptions

	// StartURL opens the editor directly. Empty starts on the connect
	// screen.
	StartURL string
}

// ScannerFunc builds a fresh scanner for each visit to the connect screen.
type ScannerFunc func() ServerScanner

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	ConnectModel ConnectModel
	FormModel    FormModel

	opts AppOptions

	Width  int
	Height int
}

// NewAppModel creates the application. With a StartURL it opens the editor;
// otherwise, or when that backend cannot be built, it starts scanning.
func NewAppModel(opts AppOptions) AppModel {
	m := AppModel{opts: opts}
	if opts.StartURL != "" {
		b, err := opts.Connect(opts.StartURL)
		if err == nil {
			m.CurrentScreen = ScreenForm
			m.FormModel = m.newForm(b, opts.StartURL)
			return m
		}
		m.CurrentScreen = ScreenConnect
		m.ConnectModel = m.newConnect()
		m.ConnectModel.Status = fmt.Sprintf("Cannot use %s: %v", opts.StartURL, err)
		return m
	}
	m.CurrentScreen = ScreenConnect
	m.ConnectModel = m.newConnect()
	return m
}

func (m AppModel) newConnect() ConnectModel {
	var scanner ServerScanner
	if m.opts.Scanner != nil {
		scanner = m.opts.Scanner()
	}
	return NewConnectModel(scanner, m.opts.ScanDuration)
}

func (m AppModel) newForm(b Backend, baseURL string) FormModel {
	fo := m.opts.Form
	fo.Location = baseURL
	return NewFormModel(b, fo)
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenConnect:
		return m.ConnectModel.Init()
	case ScreenForm:
		return m.FormModel.Init()
	default:
		return nil
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case ConnectRequestedMsg:
		return m.connect(msg)
	}

	return m.updateCurrentScreen(msg)
}

func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.CurrentScreen {
	case ScreenConnect:
		var updated tea.Model
		updated, cmd = m.ConnectModel.Update(msg)
		m.ConnectModel = updated.(ConnectModel)
	case ScreenForm:
		var updated tea.Model
		updated, cmd = m.FormModel.Update(msg)
		m.FormModel = updated.(FormModel)
	}
	return m, cmd
}

// connect switches to the editor for the requested webserver.
func (m AppModel) connect(msg ConnectRequestedMsg) (tea.Model, tea.Cmd) {
	b, err := m.opts.Connect(msg.URL)
	if err != nil {
		m.ConnectModel.Status = fmt.Sprintf("Cannot use %s: %v", msg.URL, err)
		return m, nil
	}

	if m.opts.OnConnect != nil {
		if err := m.opts.OnConnect(msg.Name, msg.URL, msg.Source); err != nil {
			logging.Warn("Failed to remember webserver",
				zap.String("name", msg.Name),
				zap.String("url", msg.URL),
				zap.Error(err),
			)
		}
	}
	logging.Info("Connecting to webserver", zap.String("url", msg.URL), zap.String("source", msg.Source))

	m.CurrentScreen = ScreenForm
	m.FormModel = m.newForm(b, msg.URL)
	if m.Width > 0 {
		updated, _ := m.FormModel.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
		m.FormModel = updated.(FormModel)
	}
	return m, m.FormModel.Init()
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenConnect:
		return m.ConnectModel.View()
	case ScreenForm:
		return m.FormModel.View()
	default:
		return "Unknown screen"
	}
}
