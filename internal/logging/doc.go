// Package logging provides structured logging for keylightctl.
//
// This package wraps zap logger with convenience functions for common
// logging patterns used throughout the application. It provides both
// general logging functions and specialized functions for discovery,
// session, and API server events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (flushes, skipped announcements)
//   - Info: Normal operations (discovery events, session transitions)
//   - Warn: Non-fatal issues (failed flushes, degraded sessions, retries)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Session created",
//	    zap.String("device", "Elgato Key Light 12AB"),
//	    zap.String("addr", "192.168.1.100:9123"),
//	)
//
// # Configuration
//
// CLI commands are silent by default; set KEYLIGHT_LOG_LEVEL to enable
// output, or initialize explicitly at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
