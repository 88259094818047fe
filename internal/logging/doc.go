// Package logging provides structured logging for the pushclone bridge.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used across the bridge: plain leveled messages, per-frame
// traffic logs for the three links and raw byte dumps for protocol debugging.
//
// # Log Levels
//
//   - Debug: frame traffic, hex dumps, pings, dropped bytes
//   - Info: link state changes, DAW session changes, startup
//   - Warn: link timeouts, missing grid after a DAW handshake, slow peers
//   - Error: transport failures
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize(cfg.LogLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to PUSHCLONE_LOG_LEVEL. When both are empty
// logging is silent, which keeps CLI commands such as "ports" quiet.
//
// # Frame Logging
//
//	logging.LogFrame("rx", "grid", cmd.String(), payload)
//	logging.LogRawBytes("serial rx", buf)
//
// All functions are safe for concurrent use.
package logging
