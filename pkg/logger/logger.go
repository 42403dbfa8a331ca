// Package logger is a process wide logging facade. Call sites log with
// a "[Stage] message" text and key-value pairs; Init decides where the
// records go. Before Init every call is a no-op.
package logger

import "sync/atomic"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds multiple logging backends and dispatches log calls to all of them.
type Logger struct {
	instances []LoggerInstance
}

var singleton atomic.Pointer[Logger]

func getSingleton() *Logger {
	return singleton.Load()
}

// Init initializes the global logger with one or more logging backends.
// Calling it again replaces the previous backends.
func Init(instances ...LoggerInstance) {
	singleton.Store(&Logger{
		instances: instances,
	})
}

// Reset removes all backends, turning every call back into a no-op.
func Reset() {
	singleton.Store(nil)
}

func dispatch(call func(LoggerInstance)) {
	logger := getSingleton()
	if logger == nil {
		return
	}
	for _, instance := range logger.instances {
		call(instance)
	}
}

// Log writes a message at the default log level to all configured backends.
func Log(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Log(message, keyvals...) })
}

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Info(message, keyvals...) })
}

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Warn(message, keyvals...) })
}

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Error(message, keyvals...) })
}

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Debug(message, keyvals...) })
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	dispatch(func(l LoggerInstance) { l.Fatal(message, keyvals...) })
}
