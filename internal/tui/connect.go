package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/discovery"
)

// ServerScanner finds DAO webservers on the local network.
type ServerScanner interface {
	Scan(ctx context.Context) ([]*discovery.Server, error)
	Probe(ctx context.Context, servers []*discovery.Server)
}

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	servers []*discovery.Server
	err     error
}

// ConnectRequestedMsg asks the application to open the editor on URL.
type ConnectRequestedMsg struct {
	Name   string
	URL    string
	Source string
}

// connectKeyMap defines key bindings for the connect screen
type connectKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k connectKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k connectKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// serverItem wraps a Server for use with bubbles/list
type serverItem struct {
	server *discovery.Server
}

func (s serverItem) FilterValue() string {
	return s.server.Name + " " + s.server.IP + " " + s.server.Hostname
}

func (s serverItem) Title() string { return s.server.Name }

func (s serverItem) Description() string { return s.server.BaseURL() }

// serverDelegate renders discovered webservers as cards
type serverDelegate struct {
	width int
}

func (d serverDelegate) Height() int { return 6 }

func (d serverDelegate) Spacing() int { return 1 }

func (d serverDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d serverDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(serverItem)
	if !ok {
		return
	}
	srv := si.server
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + srv.Name))
	} else {
		content.WriteString("  " + srv.Name)
	}
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  Webserver: %s\n", srv.BaseURL()))

	status := lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true).Render("Ready")
	if !srv.Reachable {
		status = lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("No answer on port " + fmt.Sprint(srv.Port))
	}
	version := srv.Version()
	if version == "" {
		version = "unknown"
	}
	content.WriteString(fmt.Sprintf("  HA %s · %s", version, status))

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// ConnectModel finds a webserver to edit: mDNS results or a typed address.
type ConnectModel struct {
	Scanning   bool
	ServerList list.Model
	Err        error

	// Status is a message from the application, e.g. why the last
	// connection attempt failed.
	Status string

	ManualMode bool
	URLInput   textinput.Model
	InputErr   error

	scanner      ServerScanner
	scanDuration time.Duration

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          connectKeyMap
	ManualKeys    manualModeKeyMap
}

// NewConnectModel creates the connect screen. scanDuration only drives the
// progress bar; the scanner enforces its own timeout.
func NewConnectModel(scanner ServerScanner, scanDuration time.Duration) ConnectModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	urlInput := textinput.New()
	urlInput.Placeholder = "homeassistant.local:5000"
	urlInput.CharLimit = 253
	urlInput.Width = 40

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	serverList := list.New([]list.Item{}, serverDelegate{width: MinTerminalWidth}, 0, 0)
	serverList.Title = "Discovered webservers"
	serverList.SetShowStatusBar(false)
	serverList.SetFilteringEnabled(false)
	serverList.SetShowHelp(false)
	serverList.Styles.Title = TitleStyle

	if scanDuration <= 0 {
		scanDuration = 5 * time.Second
	}

	return ConnectModel{
		ServerList:   serverList,
		URLInput:     urlInput,
		scanner:      scanner,
		scanDuration: scanDuration,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         help.New(),
		Keys: connectKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "move up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "move down"),
			),
			Enter: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "connect"),
			),
			Rescan: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "rescan"),
			),
			Manual: key.NewBinding(
				key.WithKeys("m"),
				key.WithHelp("m", "enter address"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "connect"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
	}
}

// Init starts the first scan
func (m ConnectModel) Init() tea.Cmd {
	return m.startScan()
}

func (m ConnectModel) startScan() tea.Cmd {
	if m.scanner == nil {
		return nil
	}
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		scanServers(m.scanner),
		m.Spinner.Tick,
	)
}

// scanServers browses, then checks which webservers answer
func scanServers(scanner ServerScanner) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		servers, err := scanner.Scan(ctx)
		if err != nil {
			return scanCompleteMsg{err: err}
		}
		scanner.Probe(ctx, servers)
		return scanCompleteMsg{servers: servers}
	}
}

// Servers returns the listed webservers.
func (m ConnectModel) Servers() []*discovery.Server {
	items := m.ServerList.Items()
	out := make([]*discovery.Server, 0, len(items))
	for _, it := range items {
		if si, ok := it.(serverItem); ok {
			out = append(out, si.server)
		}
	}
	return out
}

// Update handles messages and updates the model
func (m ConnectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.ServerList.SetDelegate(serverDelegate{width: msg.Width})
		m.ServerList.SetWidth(msg.Width - 4)
		m.ServerList.SetHeight(ContentHeight(msg.Height) - 2)
		return m, nil

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.servers))
		for i, srv := range msg.servers {
			items[i] = serverItem{server: srv}
		}
		cmd = m.ServerList.SetItems(items)
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ConnectModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c", key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.InputErr = nil
		m.URLInput.SetValue("")
		return m, m.URLInput.Focus()

	case m.Scanning:
		return m, nil

	case key.Matches(msg, m.Keys.Enter):
		if si, ok := m.ServerList.SelectedItem().(serverItem); ok {
			srv := si.server
			return m, func() tea.Msg {
				return ConnectRequestedMsg{Name: srv.SuggestedName(), URL: srv.BaseURL(), Source: "mdns"}
			}
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		m.Err = nil
		m.Status = ""
		cmd := m.ServerList.SetItems([]list.Item{})
		return m, tea.Batch(cmd, m.startScan())
	}

	var cmd tea.Cmd
	m.ServerList, cmd = m.ServerList.Update(msg)
	return m, cmd
}

func (m ConnectModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.ManualMode = false
		m.InputErr = nil
		m.URLInput.SetValue("")
		m.URLInput.Blur()
		return m, nil

	case "enter":
		baseURL, err := backend.NormalizeBaseURL(m.URLInput.Value())
		if err != nil {
			m.InputErr = err
			return m, nil
		}
		m.ManualMode = false
		m.InputErr = nil
		m.URLInput.Blur()
		name := BackendNameForURL(baseURL)
		return m, func() tea.Msg {
			return ConnectRequestedMsg{Name: name, URL: baseURL, Source: "manual"}
		}
	}

	var cmd tea.Cmd
	m.URLInput, cmd = m.URLInput.Update(msg)
	m.InputErr = nil
	return m, cmd
}

// BackendNameForURL derives a registry name from a webserver URL:
// "http://dao.local:5000" gives "dao", an IP address gives "10-0-0-5".
func BackendNameForURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return "dao"
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return strings.NewReplacer(".", "-", ":", "-").Replace(host)
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// View renders the connect screen
func (m ConnectModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, "not connected", m.Width, m.Height)
}

func (m ConnectModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	fraction := float64(elapsed) / float64(m.scanDuration)
	if fraction > 1 {
		fraction = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR DAO WEBSERVERS"),
		"",
		SubtitleStyle.Render("Browsing the network for Home Assistant hosts..."),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m ConnectModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Status != "" {
		b.WriteString(RenderError(m.Status))
		b.WriteString("\n\n")
	}

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		writeTroubleshooting(&b)
	case len(m.ServerList.Items()) == 0:
		warningStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  ")
		b.WriteString(warningStyle.Render("⚠ No DAO webservers found on your network"))
		b.WriteString("\n\n")
		writeTroubleshooting(&b)
	default:
		b.WriteString(m.ServerList.View())
	}
	return b.String()
}

func writeTroubleshooting(b *strings.Builder) {
	b.WriteString("  Troubleshooting:\n")
	b.WriteString("    • Make sure the Day Ahead Optimizer add-on is running\n")
	b.WriteString("    • The webserver listens on port 5000 by default\n")
	b.WriteString("    • mDNS does not cross VLANs; press 'm' to type the address\n")
	b.WriteString("    • Press 'r' to scan again\n")
}

func (m ConnectModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString(RenderSubtitle("Enter the DAO webserver address"))
	b.WriteString("\n\n")
	b.WriteString("  Address: ")
	b.WriteString(m.URLInput.View())
	b.WriteString("\n\n")
	if m.InputErr != nil {
		b.WriteString(RenderError(backend.GetShortErrorMessage(m.InputErr)))
		b.WriteString("\n")
	}
	return b.String()
}
