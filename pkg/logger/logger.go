// pkg/logger/logger.go
package logger

import (
	"log"
	"os"
)

// Logger provides leveled, printf-style logging for the scraping services.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug bool
}

// New creates a logger writing to stdout/stderr. When debug is false,
// Debug calls are dropped.
func New(debug bool) *Logger {
	return &Logger{
		info:  log.New(os.Stdout, "INFO  ", log.LstdFlags),
		warn:  log.New(os.Stdout, "WARN  ", log.LstdFlags),
		err:   log.New(os.Stderr, "ERROR ", log.LstdFlags),
		debug: debug,
	}
}

func (l *Logger) Info(format string, v ...any) {
	l.info.Printf(format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	l.warn.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.err.Printf(format, v...)
}

func (l *Logger) Debug(format string, v ...any) {
	if l.debug {
		l.info.Printf("DEBUG "+format, v...)
	}
}
