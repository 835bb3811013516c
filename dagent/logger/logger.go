// Package logger provides the structured logging used throughout dagent,
// a package-global charmbracelet/log instance with a configurable level.
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the handle every package logs through.
type Logger = *log.Logger

var global Logger

// Init sets the global logger's level. Safe to call once at startup;
// packages that log before Init runs get the "info" default via L.
func Init(level string) {
	global = New(level)
}

// L returns the global logger, lazily defaulting to "info" level.
func L() Logger {
	if global == nil {
		global = New("info")
	}
	return global
}

// New builds a standalone logger at the given level, timestamped and
// written to stdout.
func New(level string) Logger {
	l := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})

	switch strings.ToLower(level) {
	case "debug":
		l.SetLevel(log.DebugLevel)
	case "warn":
		l.SetLevel(log.WarnLevel)
	case "error":
		l.SetLevel(log.ErrorLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}
	return l
}
