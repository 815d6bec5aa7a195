// Package logging provides structured logging for the billing SDK.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the SDK and the agent.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Redaction: "api_key" attributes are masked, credentials hidden
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("usage reported", "module", "llm", "api_key", key) // key is masked
//	logger.Error("failed to connect", "error", err)
package logging
