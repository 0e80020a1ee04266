// Package cli provides shared utilities for bzlnav command line tools.
package cli

// Standard exit codes for bzlnav tools.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: General error (resolution failures, I/O errors, etc.)
//   - 2: Warnings or empty results
const (
	// ExitOK indicates successful execution with no issues.
	ExitOK = 0

	// ExitError indicates a fatal error occurred (unresolvable label, bad
	// flag combination, I/O error, etc.).
	ExitError = 1

	// ExitWarning indicates the tool completed but the result is degraded.
	// For example:
	//   - completion produced no candidates
	//   - a watched file disappeared and resolution stopped
	ExitWarning = 2
)
