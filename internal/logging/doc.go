// Package logging provides structured logging utilities for the safe-gmail-mcp server.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming across the codebase
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.list")
//	logger.Info("listing threads",
//	    logging.Status("success"))
//
// # Security Considerations
//
// OAuth tokens are never logged directly; use SanitizeToken when a log
// line needs to acknowledge a token's presence.
package logging
