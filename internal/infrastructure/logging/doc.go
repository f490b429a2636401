// Package logging provides structured logging for the XDTK controller.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("transceiver").Info("listening", "port", 5555)
//
// Per-datagram messages (decode failures, WHOAREYOU replies) are logged
// at debug so a busy network does not flood info output.
package logging
