// Package diag is TinyScript's host-facing diagnostics logger. The VM and
// compiler never log — they return errors — logging is strictly a
// CLI/host concern, following the reference implementation's own
// confinement of log.Printf calls to cmd/ and a handful of internal/repl
// lines rather than littering the interpreter core.
package diag

import (
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"
)

// Logger wraps a standard *log.Logger with the handful of message shapes
// the CLI and REPL need: compile warnings, import resolution notices, and
// run-summary banners.
type Logger struct {
	l *log.Logger
}

// New wraps out with the reference's own log.LstdFlags convention and no
// prefix, so CLI/REPL output reads like plain timestamped lines.
func New(out io.Writer) *Logger {
	return &Logger{l: log.New(out, "", log.LstdFlags)}
}

func (d *Logger) Warnf(format string, args ...interface{}) {
	d.l.Printf("warning: "+format, args...)
}

func (d *Logger) Infof(format string, args ...interface{}) {
	d.l.Printf(format, args...)
}

// ImportResolved logs a notice when the importer splices in a file.
func (d *Logger) ImportResolved(path string) {
	d.l.Printf("import resolved: %s", path)
}

// RunSummary logs a one-line banner after a run completes: instruction
// count and global count digit-grouped with humanize.Comma, and the
// wall-clock duration in its own String form.
func (d *Logger) RunSummary(instructionCount, globalCount int, elapsed fmt.Stringer) {
	d.l.Printf("compiled %s instructions, %s globals, ran in %s",
		humanize.Comma(int64(instructionCount)), humanize.Comma(int64(globalCount)), elapsed)
}

// ProgramSize logs the in-memory footprint of a compiled program, in
// human-readable byte units.
func (d *Logger) ProgramSize(bytes uint64) {
	d.l.Printf("compiled program size: %s", humanize.Bytes(bytes))
}
