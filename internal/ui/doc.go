// Package ui renders the non-interactive output of dao-cfg commands.
//
// The interactive editor lives in internal/tui. This package covers the
// "run once and exit" commands: a header naming the command and the
// webserver, step lines while work happens, and a closing success, warning
// or failure box. Failure boxes carry troubleshooting tips.
//
//	p := ui.NewPrinter(cmd.OutOrStdout())
//	p.PrintHeader("Upload settings", "dao-cfg upload options",
//	    ui.Param{Key: "Webserver", Value: baseURL})
//	p.PrintStep("Read options.json", ui.StepComplete, "2,048 bytes")
//	p.PrintSuccess("options.json uploaded")
//
// Destructive commands ask first with a Confirmation, which only reads from
// the reader it is given so it can be driven from tests.
//
// Logging is controlled by DAO_CFG_LOG_LEVEL and is silent by default, so
// log lines do not interleave with this output.
package ui
