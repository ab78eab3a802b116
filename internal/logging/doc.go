// Package logging provides structured logging for dao-cfg.
//
// This package wraps a zap logger with convenience functions for the few
// logging patterns the editor needs. Logging is silent by default: the TUI
// owns the terminal, and CLI commands print curated output of their own.
//
// # Enabling Logs
//
// Set DAO_CFG_LOG_LEVEL (or pass --log-level) to one of "debug", "info",
// "warn" or "error". Interactive sessions should also pass --log-file so log
// lines do not corrupt the screen:
//
//	DAO_CFG_LOG_LEVEL=debug dao-cfg edit --log-file /tmp/dao-cfg.log
//
// # Specialized Logging
//
//	logging.LogHTTPRequest("GET", url, 200, elapsed, nil)
//	logging.LogSearch("sensor", "temp", 3, elapsed)
//	logging.LogCacheEvent("hit", 120, age)
//
// # Tests
//
// SetLogger swaps the global logger, which pairs with zaptest/observer:
//
//	core, logs := observer.New(zap.DebugLevel)
//	defer logging.SetLogger(zap.New(core))()
package logging
