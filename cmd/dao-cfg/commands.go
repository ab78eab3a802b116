package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/discovery"
	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/tui"
	"github.com/dayahead/daocfg/internal/ui"
)

func init() {
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(secretsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(backendsCmd)
}

// editCmd launches the interactive editor
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit options.json interactively",
	Long: `Launch the interactive editor for options.json.

Entity fields offer Home Assistant autocomplete, secret fields pick a key
from secrets.json, and fields that accept both switch between a literal
value and a reference with ctrl+t. ctrl+s saves to the webserver.

Without --url, --backend or a saved default backend, the editor starts by
scanning the network for webservers.`,
	Example: `  # Edit the default backend
  dao-cfg edit
  # Or simply (edit is default):
  dao-cfg

  # Edit a specific webserver
  dao-cfg edit --url homeassistant.local:5000

  # Try the editor without a webserver
  dao-cfg --demo`,
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	prefs := s.registry.Preferences

	acOpts := tui.DefaultAutocompleteOptions()
	acOpts.MinChars = prefs.MinChars
	acOpts.MaxResults = prefs.MaxResults
	acOpts.Debounce = prefs.Debounce()

	model := tui.NewAppModel(tui.AppOptions{
		Connect: func(baseURL string) (tui.Backend, error) {
			url, err := backend.NormalizeBaseURL(baseURL)
			if err != nil {
				return nil, err
			}
			return s.newClient(url), nil
		},
		OnConnect: func(name, baseURL, source string) error {
			if demoMode {
				return nil
			}
			s.registry.EnsureBackend(name, baseURL, source)
			s.registry.TouchBackend(name)
			return s.registry.Save()
		},
		Scanner: func() tui.ServerScanner {
			scanner := discovery.NewScanner()
			scanner.Timeout = prefs.DiscoverDuration()
			return scanner
		},
		ScanDuration: prefs.DiscoverDuration(),
		Form: tui.FormOptions{
			Help:          s.help,
			Autocomplete:  acOpts,
			ToastDuration: prefs.ToastDuration(),
		},
		StartURL: s.baseURL,
	})

	logging.Info("Starting editor", zap.String("url", s.baseURL), zap.Bool("demo", demoMode))

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("editor error: %w", err)
	}
	s.remember()
	return nil
}

// Scan command flags
var (
	scanSeconds int
	scanSave    bool
)

// scanCmd discovers webservers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Day Ahead Optimizer webservers on the network",
	Long: `Scan for Home Assistant hosts using mDNS/DNS-SD and check each one for
a Day Ahead Optimizer webserver on port 5000.

With --save every webserver that answers is stored as a backend, named
after its Home Assistant location.`,
	Example: `  # Scan for 5 seconds (default)
  dao-cfg scan

  # Longer scan, then remember what was found
  dao-cfg scan --duration 15 --save`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanSeconds, "duration", 0, "Scan duration in seconds (default from preferences)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save reachable webservers as backends")
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	scanner := discovery.NewScanner()
	scanner.Timeout = s.registry.Preferences.DiscoverDuration()
	if scanSeconds > 0 {
		scanner.Timeout = secondsDuration(scanSeconds)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Scan for webservers", "dao-cfg scan",
		ui.Param{Key: "Duration", Value: scanner.Timeout.String()},
		ui.Param{Key: "Port", Value: fmt.Sprint(scanner.Port)},
	)

	servers, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintFailure("Scan failed", err, troubleshooting(err))
		return fmt.Errorf("scan failed: %w", err)
	}
	scanner.Probe(cmd.Context(), servers)

	if len(servers) == 0 {
		p.PrintWarning("No Home Assistant hosts found")
		p.Println("Troubleshooting:")
		p.Println("  - Check that this computer is on the same network as Home Assistant")
		p.Println("  - Some networks block mDNS; try --duration 15")
		p.Println("  - Use --url to give the webserver address directly")
		return nil
	}

	p.PrintTable([]string{"Name", "Webserver", "Home Assistant", "Status"}, serverRows(servers))

	if !scanSave {
		p.Println("Use 'dao-cfg scan --save' to remember these webservers")
		p.Println("Use 'dao-cfg edit --url <webserver>' to edit one directly")
		return nil
	}

	saved := saveServers(s, servers)
	if len(saved) == 0 {
		p.PrintWarning("No webserver answered; nothing saved")
		return nil
	}
	if err := s.registry.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	p.PrintSuccess("Backends saved", saved...)
	return nil
}

func serverRows(servers []*discovery.Server) [][]string {
	rows := make([][]string, 0, len(servers))
	for _, srv := range servers {
		status := "no answer"
		if srv.Reachable {
			status = "ready"
		}
		ha := srv.HomeAssistantURL()
		if v := srv.Version(); v != "" {
			ha += " (" + v + ")"
		}
		rows = append(rows, []string{srv.SuggestedName(), srv.BaseURL(), ha, status})
	}
	return rows
}

// saveServers stores every reachable server in the registry and returns
// what was saved.
func saveServers(s *session, servers []*discovery.Server) []ui.Param {
	var saved []ui.Param
	for _, srv := range servers {
		if !srv.Reachable {
			continue
		}
		name := srv.SuggestedName()
		s.registry.EnsureBackend(name, srv.BaseURL(), "mdns")
		s.registry.TouchBackend(name)
		saved = append(saved, ui.Param{Key: name, Value: srv.BaseURL()})
	}
	return saved
}

// Entity command flags
var (
	entityDomain string
	entityPlain  bool
)

// entitiesCmd groups Home Assistant entity lookups
var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Look up Home Assistant entities through the webserver",
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entities",
	Example: `  # Everything
  dao-cfg entities list

  # Only sensors and helpers
  dao-cfg entities list --domain sensor,input_number`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntities(cmd, "")
	},
}

var entitiesSearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search entities by ID or name",
	Example: `  # Temperature sensors
  dao-cfg entities search temp --domain sensor

  # IDs only, for scripts
  dao-cfg entities search battery --plain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntities(cmd, args[0])
	},
}

func init() {
	entitiesCmd.PersistentFlags().StringVar(&entityDomain, "domain", "", "Comma-separated domain filter, e.g. sensor,input_number")
	entitiesCmd.PersistentFlags().BoolVar(&entityPlain, "plain", false, "Print entity IDs only, one per line")
	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesSearchCmd)
}

func runEntities(cmd *cobra.Command, pattern string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	entities, err := lookupEntities(cmd.Context(), s.client(), entityDomain, pattern)
	if err != nil {
		ui.NewPrinter(cmd.ErrOrStderr()).PrintFailure("Entity lookup failed", err, troubleshooting(err))
		return fmt.Errorf("entity lookup failed: %w", err)
	}
	s.remember()

	printEntities(cmd.OutOrStdout(), entities, entityPlain)
	return nil
}

// lookupEntities lists (empty pattern) or searches entities.
func lookupEntities(ctx context.Context, c *backend.Client, domainFilter, pattern string) ([]backend.Entity, error) {
	if pattern != "" {
		return c.Search(ctx, domainFilter, pattern)
	}
	if _, err := c.FetchAll(ctx, true); err != nil {
		return nil, err
	}
	return c.FilterByDomain(domainFilter), nil
}

func printEntities(w io.Writer, entities []backend.Entity, plain bool) {
	if plain {
		for _, e := range entities {
			_, _ = fmt.Fprintln(w, e.ID)
		}
		return
	}

	p := ui.NewPrinter(w)
	if len(entities) == 0 {
		p.Println("No matching entities.")
		return
	}
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{e.ID, e.Label(), e.StateWithUnit()})
	}
	p.PrintTable([]string{"Entity", "Name", "State"}, rows)
	p.Printf("%d entities\n", len(entities))
}

// secretsCmd lists secret keys
var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "List the keys in secrets.json",
	Long: `List the keys in secrets.json. Values are never printed; use a key in
options.json as "!secret <key>".`,
	Args: cobra.NoArgs,
	RunE: runSecrets,
}

func runSecrets(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	keys, err := s.client().SecretKeys(cmd.Context())
	if err != nil {
		ui.NewPrinter(cmd.ErrOrStderr()).PrintFailure("Cannot read secrets.json", err, troubleshooting(err))
		return fmt.Errorf("failed to list secrets: %w", err)
	}
	s.remember()

	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}

// secondsDuration converts a whole number of seconds from a flag.
func secondsDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}
