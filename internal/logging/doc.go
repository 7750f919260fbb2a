// Package logging wraps log/slog with the handlers and attribute helpers
// shared by every projector component. It provides a JSON handler for
// machine-readable runs and a compact console handler for interactive use.
package logging
