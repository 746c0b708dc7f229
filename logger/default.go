package logger

import "sync/atomic"

var defLogger atomic.Value

func init() {
	defLogger.Store(loggerHolder{NewSlog(InfoLevel, false)})
}

// loggerHolder keeps atomic.Value stores on a single concrete type.
type loggerHolder struct{ Logger }

func current() Logger {
	h, _ := defLogger.Load().(loggerHolder)
	return h.Logger
}

func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	current().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	current().SetLevel(level)
}

// GetLogger returns the package default logger. Sessions and coordinators use it
// unless a logger is supplied through their options.
func GetLogger() Logger {
	return current()
}

// SetLogger replaces the package default logger. A nil logger is ignored.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(loggerHolder{l})
}

func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
