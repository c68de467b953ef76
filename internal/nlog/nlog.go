// Package nlog provides the worker's structured logger. It keeps the
// call-site shape the teacher codebase uses (Infof/Infoln/Errorln/Warnf)
// while delegating the actual sink to zerolog.
package nlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var std = New(os.Stderr)

// Logger wraps a zerolog.Logger and exposes the printf/println style API
// used throughout this codebase.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing to w with RFC3339 timestamps.
func New(w io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return &Logger{z: zerolog.New(w).With().Timestamp().Logger()}
}

// SetDefault replaces the package-level logger used by the free functions.
func SetDefault(l *Logger) { std = l }

// With returns a child logger carrying an additional string field.
func (l *Logger) With(key, val string) *Logger {
	return &Logger{z: l.z.With().Str(key, val).Logger()}
}

func (l *Logger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *Logger) Infoln(args ...any)                { l.z.Info().Msg(sprintln(args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l *Logger) Warnln(args ...any)                { l.z.Warn().Msg(sprintln(args...)) }
func (l *Logger) Errorf(format string, args ...any)  { l.z.Error().Msgf(format, args...) }
func (l *Logger) Errorln(args ...any)                { l.z.Error().Msg(sprintln(args...)) }
func (l *Logger) Debugf(format string, args ...any)  { l.z.Debug().Msgf(format, args...) }
func (l *Logger) Debugln(args ...any)                { l.z.Debug().Msg(sprintln(args...)) }

// package-level convenience wrappers over the default logger.

func With(key, val string) *Logger            { return std.With(key, val) }
func Infof(format string, args ...any)        { std.Infof(format, args...) }
func Infoln(args ...any)                      { std.Infoln(args...) }
func Warnf(format string, args ...any)        { std.Warnf(format, args...) }
func Warnln(args ...any)                      { std.Warnln(args...) }
func Errorf(format string, args ...any)       { std.Errorf(format, args...) }
func Errorln(args ...any)                     { std.Errorln(args...) }
func Debugf(format string, args ...any)       { std.Debugf(format, args...) }
func Debugln(args ...any)                     { std.Debugln(args...) }

// sprintln mirrors fmt.Sprintln's spacing without the trailing newline;
// zerolog's Msg already terminates the line.
func sprintln(args ...any) string {
	s := fmt.Sprintln(args...)
	return s[:len(s)-1]
}
