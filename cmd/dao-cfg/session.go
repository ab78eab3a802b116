package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/config"
	"github.com/dayahead/daocfg/internal/fakebackend"
	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/schema"
	"github.com/dayahead/daocfg/internal/urls"
)

// Connection flags, shared by every command
var (
	webserverURL string
	backendName  string
	demoMode     bool
	logLevel     string
	logFile      string
	timeoutSecs  int
	helpFile     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&webserverURL, "url", "", "Webserver URL, e.g. homeassistant.local:5000 (skips saved backends)")
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "", "Saved backend to use (default: the configured default)")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "Run against a built-in demo webserver")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 0, "HTTP timeout in seconds (default from preferences)")
	rootCmd.PersistentFlags().StringVar(&helpFile, "help-file", "", "JSON file with field help texts")
}

// setupLogging initializes zap. The editor owns the terminal, so when a level
// is set without --log-file its output goes to the state directory.
func setupLogging(cmd *cobra.Command, _ []string) error {
	opts := logging.Options{Level: logLevel, File: logFile}
	if opts.File == "" && isEditorCommand(cmd) {
		if dir, err := config.GetStateDir(); err == nil {
			opts.File = filepath.Join(dir, "dao-cfg.log")
		}
	}
	if err := logging.InitializeWithOptions(opts); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// isEditorCommand reports whether cmd runs the full-screen editor, whose
// logs must not reach the terminal.
func isEditorCommand(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "edit"
}

// session is the webserver a command talks to, plus everything derived from
// the registry for it.
type session struct {
	registry *config.Registry

	// name is the saved backend in use; empty for --url and --demo
	name    string
	baseURL string

	help     schema.HelpCatalog
	shutdown func(context.Context) error
}

// openSession resolves the webserver from the flags and the registry. With
// required unset a missing webserver is not an error: the editor falls back
// to its connect screen.
func openSession(required bool) (*session, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	s := &session{registry: reg}

	switch {
	case demoMode:
		fixture, err := fakebackend.LoadDemo()
		if err != nil {
			return nil, fmt.Errorf("failed to load demo data: %w", err)
		}
		url, shutdown, err := fakebackend.New(fixture).Start("127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start demo webserver: %w", err)
		}
		s.baseURL, s.shutdown = url, shutdown

	case webserverURL != "":
		url, err := backend.NormalizeBaseURL(webserverURL)
		if err != nil {
			return nil, err
		}
		s.baseURL = url

	default:
		name, b, err := reg.ResolveBackend(backendName)
		switch {
		case err == nil:
			s.name, s.baseURL = name, b.URL
		case required || backendName != "":
			return nil, err
		default:
			logging.Debug("No backend resolved", zap.Error(err))
		}
	}

	if err := s.loadHelp(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) loadHelp() error {
	path := helpFile
	if path == "" {
		path = s.registry.Preferences.HelpFile
	}
	if path != "" {
		catalog, err := schema.LoadHelpFile(path)
		if err != nil {
			return fmt.Errorf("failed to load help file: %w", err)
		}
		s.help = catalog
		return nil
	}
	if demoMode {
		catalog, err := fakebackend.DemoHelp()
		if err != nil {
			return fmt.Errorf("failed to load demo help: %w", err)
		}
		s.help = catalog
	}
	return nil
}

func (s *session) close() {
	if s.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		logging.Warn("Demo webserver shutdown failed", zap.Error(err))
	}
	s.shutdown = nil
}

func (s *session) timeout() time.Duration {
	if timeoutSecs > 0 {
		return time.Duration(timeoutSecs) * time.Second
	}
	return s.registry.Preferences.Timeout()
}

// newClient builds a REST client tuned by the preferences.
func (s *session) newClient(baseURL string) *backend.Client {
	c := backend.NewClientWithURL(baseURL)
	c.SetTimeout(s.timeout())
	c.CacheDuration = s.registry.Preferences.CacheTTL()
	c.PatternParam = s.registry.Preferences.PatternParam
	return c
}

func (s *session) client() *backend.Client {
	return s.newClient(s.baseURL)
}

// remember marks the saved backend as seen. Registry write failures are
// logged only; the command itself succeeded.
func (s *session) remember() {
	if s.name == "" {
		return
	}
	s.registry.TouchBackend(s.name)
	if err := s.registry.Save(); err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
}

// troubleshooting turns an error into tips for a failure box.
func troubleshooting(err error) []string {
	var tips []string
	for _, line := range strings.Split(backend.GetTroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, strings.TrimPrefix(line, "• "))
	}
	return append(tips, "Documentation: "+urls.Documentation)
}
