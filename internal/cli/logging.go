// Package cli provides the terminal-facing ambient stack for the mediadupe
// command line: structured logging, interactive prompts, and colored status
// rendering (SPEC_FULL.md "AMBIENT STACK"). Grounded on the teacher's
// ui.go and main.go for tone and on shaankhosla-immich-go's test harness for
// the humane slog handler.
package cli

import (
	"io"
	"log/slog"

	"github.com/telemachus/humane"
)

// NewLogger builds the structured logger every pipeline stage logs
// per-file issues to (spec.md §7 "Propagation policy": logging is a sink,
// the event stream is authoritative). Per-file warnings use
// slog.LevelWarn; main.go prints fatal CLI-level errors in red to stderr
// via fatih/color and exits with status 1.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(humane.NewHandler(w, &humane.Options{Level: level}))
}
