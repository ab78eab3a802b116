// Dao-cfg edits the configuration of a Day Ahead Optimizer webserver.
//
// It provides an interactive form for options.json with Home Assistant
// entity autocomplete and secrets.json references, mDNS discovery of
// webservers, and direct commands for scripting: entity lookup, secret
// keys, and settings download and upload.
//
// Usage:
//
//	dao-cfg [command] [flags]
//
// Running without arguments launches the editor.
// See 'dao-cfg --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dao-cfg",
	Short: "Day Ahead Optimizer configuration editor",
	Long: `A terminal editor for the Day Ahead Optimizer webserver configuration.

Edits options.json with Home Assistant entity autocomplete and secrets.json
references, finds webservers on the local network, and transfers settings
documents for scripting.

If no command is specified, the interactive editor launches.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentPreRunE = setupLogging

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dao-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}
