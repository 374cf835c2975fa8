// Package log provides the pluggable logger contract shared by every
// service in this repository. Any collaborator that logs takes one of
// these by constructor injection; nothing logs through a package global.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// PluggableLoggerInterface is implemented by Logger and by test doubles.
type PluggableLoggerInterface interface {
	Trace(msg string, a ...any)
	Debug(msg string, a ...any)
	Info(msg string, a ...any)
	Warn(msg string, a ...any)
	Error(msg string, a ...any)
}

type Logger struct {
	entry *logrus.Logger
}

// New returns a Logger at the given level ("trace", "debug", "info",
// "warn", "error"). An unrecognized level falls back to "info".
func New(level string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &Logger{entry: l}
}

func (l *Logger) Trace(msg string, a ...any) { l.entry.Tracef(msg, a...) }
func (l *Logger) Debug(msg string, a ...any) { l.entry.Debugf(msg, a...) }
func (l *Logger) Info(msg string, a ...any)  { l.entry.Infof(msg, a...) }
func (l *Logger) Warn(msg string, a ...any)  { l.entry.Warnf(msg, a...) }
func (l *Logger) Error(msg string, a ...any) { l.entry.Errorf(msg, a...) }

// Nop discards everything; useful in tests that don't want log noise
// but still need a PluggableLoggerInterface.
type Nop struct{}

func (Nop) Trace(string, ...any) {}
func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
