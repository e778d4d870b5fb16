package libemit

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// zerologLogger implements the Logger interface on top of a zerolog.Logger
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl so it can be handed to WithLogger or NewWsFeed.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) WithField(key string, value any) Logger {
	return &zerologLogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *zerologLogger) log(level zerolog.Level, msg string) {
	l.zl.WithLevel(level).Msg(msg)
}

func (l *zerologLogger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, fmt.Sprint(args...))
}

func (l *zerologLogger) Debugf(format string, args ...any) {
	l.log(zerolog.DebugLevel, fmt.Sprintf(format, args...))
}

func (l *zerologLogger) Debugln(args ...any) {
	l.log(zerolog.DebugLevel, sprintln(args...))
}

func (l *zerologLogger) Info(args ...any) {
	l.log(zerolog.InfoLevel, fmt.Sprint(args...))
}

func (l *zerologLogger) Infof(format string, args ...any) {
	l.log(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *zerologLogger) Infoln(args ...any) {
	l.log(zerolog.InfoLevel, sprintln(args...))
}

func (l *zerologLogger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, fmt.Sprint(args...))
}

func (l *zerologLogger) Warnf(format string, args ...any) {
	l.log(zerolog.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *zerologLogger) Warnln(args ...any) {
	l.log(zerolog.WarnLevel, sprintln(args...))
}

func (l *zerologLogger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, fmt.Sprint(args...))
}

func (l *zerologLogger) Errorf(format string, args ...any) {
	l.log(zerolog.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *zerologLogger) Errorln(args ...any) {
	l.log(zerolog.ErrorLevel, sprintln(args...))
}

// sprintln drops the trailing newline; zerolog terminates every entry itself.
func sprintln(args ...any) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
