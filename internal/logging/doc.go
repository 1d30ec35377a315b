// Package logging provides structured logging utilities for freebusy.
//
// All logging goes through the standard library's slog package. This package
// only adds consistent attribute names and a few sanitizers so that user
// identifiers and tokens never end up in logs verbatim.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "freebusy.query")
//	logger.Info("querying free/busy",
//	    logging.UserHash(userID),
//	    logging.Status(logging.StatusSuccess))
//
// Tokens are never logged directly; use SanitizeToken.
package logging
