package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/config"
	"github.com/dayahead/daocfg/internal/ui"
)

// backendsCmd manages saved webservers
var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Manage saved webservers",
	Long: `Manage the webservers saved in the dao-cfg configuration file.

The default backend is used whenever --url and --backend are not given.`,
	RunE: runBackendsList,
}

var backendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved webservers",
	Args:  cobra.NoArgs,
	RunE:  runBackendsList,
}

var backendsAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Save a webserver",
	Example: `  dao-cfg backends add home homeassistant.local
  dao-cfg backends add cabin http://10.0.0.5:5000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		url, err := addBackend(reg, args[0], args[1])
		if err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s → %s\n", args[0], url)
		return nil
	},
}

var backendsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a saved webserver the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := reg.SetDefaultBackend(args[0]); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default backend is now %s\n", args[0])
		return nil
	},
}

var backendsRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a saved webserver",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if !reg.RemoveBackend(args[0]) {
			return fmt.Errorf("no saved backend named %q", args[0])
		}
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	backendsCmd.AddCommand(backendsListCmd)
	backendsCmd.AddCommand(backendsAddCmd)
	backendsCmd.AddCommand(backendsUseCmd)
	backendsCmd.AddCommand(backendsRemoveCmd)
}

func runBackendsList(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(reg.Backends) == 0 {
		p.Println("No saved webservers.")
		p.Println("Use 'dao-cfg scan --save' or 'dao-cfg backends add <name> <url>'")
		return nil
	}
	p.PrintTable([]string{"", "Name", "URL", "Source", "Last seen"}, backendRows(reg))
	return nil
}

// addBackend normalizes url and saves it under name as a manual entry.
func addBackend(reg *config.Registry, name, raw string) (string, error) {
	if name == "" {
		return "", backend.NewMalformedInputError("backend name is empty", nil)
	}
	url, err := backend.NormalizeBaseURL(raw)
	if err != nil {
		return "", err
	}
	reg.EnsureBackend(name, url, "manual")
	return url, nil
}

func backendRows(reg *config.Registry) [][]string {
	rows := make([][]string, 0, len(reg.Backends))
	for _, name := range reg.BackendNames() {
		b := reg.GetBackend(name)
		marker := ""
		if name == reg.DefaultBackend {
			marker = "*"
		}
		seen := "never"
		if !b.LastSeen.IsZero() {
			seen = b.LastSeen.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{marker, name, b.URL, b.Source, seen})
	}
	return rows
}
