// Package pmlog provides the PM's human-facing console output, adapted
// from the teacher's internal/logger: colored status prefixes via
// fatih/color, gated on terminal detection via mattn/go-isatty, layered
// over structured diagnostics via hashicorp/go-hclog for anything that
// should also be greppable in a non-interactive run.
package pmlog

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// IsTTY reports whether stdout is an interactive terminal, the same
// detection the teacher uses to decide whether to color output.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var (
	successPrefix = color.New(color.Bold, color.FgGreen, color.ReverseVideo).Sprint(" OK ")
	warningPrefix = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" WARN ")
	errorPrefix   = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" ERROR ")
)

// Logger is the PM's console logger: colored prefixed lines for humans,
// backed by an hclog.Logger for structured diagnostics.
type Logger struct {
	Out  io.Writer
	hlog hclog.Logger
}

// New builds a Logger writing to stdout, with a named hclog backend at
// the given level ("info", "debug", "warn", "error").
func New(name string, level string) *Logger {
	return &Logger{
		Out: os.Stdout,
		hlog: hclog.New(&hclog.LoggerOptions{
			Name:  name,
			Level: hclog.LevelFromString(level),
		}),
	}
}

// Printf writes an unadorned line to Out.
func (l *Logger) Printf(format string, args ...interface{}) {
	fmt.Fprintln(l.Out, fmt.Sprintf(format, args...))
}

// Successf writes a green "OK"-prefixed line.
func (l *Logger) Successf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.Out, "%s%s\n", successPrefix, color.GreenString(" %v", msg))
	l.hlog.Info(msg)
}

// Warnf writes a yellow "WARN"-prefixed line and logs it at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.Out, "%s%s\n", warningPrefix, color.YellowString(" %v", msg))
	l.hlog.Warn(msg)
}

// Errorf writes a red "ERROR"-prefixed line and logs it at error level,
// returning the plain (uncolored) error for callers that need to wrap it.
func (l *Logger) Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintf(l.Out, "%s%s\n", errorPrefix, color.RedString(" %v", err))
	l.hlog.Error(err.Error())
	return err
}

// HCLog exposes the structured backend directly, for components (e.g.
// internal/registry.Client) that want an hclog.Logger rather than this
// package's human-formatted wrapper.
func (l *Logger) HCLog() hclog.Logger {
	return l.hlog
}
