package libemit

// Logger is the logging surface used across the package. NewZerologLogger adapts a
// zerolog.Logger to it.
type Logger interface {
	WithField(key string, value any) Logger
	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)
}

type nopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

func (l nopLogger) WithField(string, any) Logger { return l }
func (nopLogger) Debug(...any)                   {}
func (nopLogger) Debugf(string, ...any)          {}
func (nopLogger) Debugln(...any)                 {}
func (nopLogger) Info(...any)                    {}
func (nopLogger) Infof(string, ...any)           {}
func (nopLogger) Infoln(...any)                  {}
func (nopLogger) Warn(...any)                    {}
func (nopLogger) Warnf(string, ...any)           {}
func (nopLogger) Warnln(...any)                  {}
func (nopLogger) Error(...any)                   {}
func (nopLogger) Errorf(string, ...any)          {}
func (nopLogger) Errorln(...any)                 {}
