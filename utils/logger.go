package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger. The zero value logs info and above to stdout.
type LoggerOptions struct {
	Level string
	// File enables an additional rotating log file.
	File string
	// Out overrides the console destination (used by tests).
	Out io.Writer
}

// Logger provides leveled, printf-style logging on top of zerolog.
type Logger struct {
	z zerolog.Logger
}

// NewLogger creates a Logger writing human-readable lines to the console and,
// optionally, JSON lines to a rotating file.
func NewLogger(opts LoggerOptions) *Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}

	var w io.Writer = console
	if opts.File != "" {
		w = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     30,
		})
	}

	return &Logger{
		z: zerolog.New(w).Level(parseLevel(opts.Level)).With().Timestamp().Logger(),
	}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{z: zerolog.Nop()}
}

// With returns a child logger that attaches key=value to every line.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

func (l *Logger) Info(format string, args ...any) {
	l.z.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.z.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.z.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.z.Debug().Msg(fmt.Sprintf(format, args...))
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
