package logsvc

import (
	"io"
	"log"
)

// Logger is the logging surface used across the client.
// expected args: error, map[string]interface{} or any printable value
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type ConsoleLogger struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(std *log.Logger, debug bool) *ConsoleLogger {
	if std == nil {
		std = log.Default()
	}
	return &ConsoleLogger{std: std, debug: debug}
}

func (l ConsoleLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("  %+v", arg)
	}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.print("DEBUG", msg, args)
}

func (l ConsoleLogger) Info(msg string, args ...interface{}) {
	l.print("INFO", msg, args)
}

func (l ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.print("WARN", msg, args)
}

func (l ConsoleLogger) Error(msg string, args ...interface{}) {
	l.print("ERROR", msg, args)
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewConsoleLogger(log.New(io.Discard, "", 0), false)
}
