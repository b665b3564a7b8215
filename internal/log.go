package internal

import (
	"fmt"
	"log/slog"
	"os"
)

// LogInfo logs an informational message to stderr so it never mixes with
// report output on stdout.
func LogInfo(msg string, args ...any) {
	slog.Info(msg, args...)
}

// LogWarn logs a warning.
func LogWarn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// FatalError logs an error and exits the program.
func FatalError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
	os.Exit(1)
}
