package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Logger defines the logging contract shared by the CLI, the migrator and
// the HTTP server. Implementations must be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// StdLogger wraps Go's standard logger. Debug output is dropped unless
// verbose logging is enabled.
type StdLogger struct {
	logger  *log.Logger
	verbose atomic.Bool
}

// NewStdLogger creates a new StdLogger writing to stdout.
func NewStdLogger() *StdLogger {
	return New(os.Stdout, log.LstdFlags)
}

// New creates a StdLogger writing to w with the given log flags.
func New(w io.Writer, flags int) *StdLogger {
	return &StdLogger{
		logger: log.New(w, "", flags),
	}
}

// SetVerbose toggles Debug output.
func (l *StdLogger) SetVerbose(v bool) {
	l.verbose.Store(v)
}

func (l *StdLogger) Info(msg string, args ...any) {
	l.logger.Printf("[INFO] "+msg, args...)
}

func (l *StdLogger) Warn(msg string, args ...any) {
	l.logger.Printf("[WARN] "+msg, args...)
}

func (l *StdLogger) Error(msg string, args ...any) {
	l.logger.Printf("[ERROR] "+msg, args...)
}

func (l *StdLogger) Debug(msg string, args ...any) {
	if !l.verbose.Load() {
		return
	}
	l.logger.Printf("[DEBUG] "+msg, args...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (Nop) Debug(string, ...any) {}

// Default provides a global default logger instance using Go's standard logger.
var Default = NewStdLogger()
