package monitoring

import (
	"log"
	"sync/atomic"
)

// LogFunc writes one formatted diagnostic line
type LogFunc func(format string, v ...interface{})

var output atomic.Pointer[LogFunc]

func init() {
	SetLogger(log.Printf)
}

// SetLogger replaces the process-wide sink used by every component logger.
// Passing nil mutes all output. Safe to call while loggers are in use.
func SetLogger(f LogFunc) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	output.Store(&f)
}

// Logf writes through the current sink without a component tag
func Logf(format string, v ...interface{}) {
	(*output.Load())(format, v...)
}

// Logger tags each line with the component that wrote it
type Logger struct {
	prefix string
}

// Component returns a logger whose lines start with "[name] "
func Component(name string) Logger {
	return Logger{prefix: "[" + name + "] "}
}

// Printf logs a tagged line
func (l Logger) Printf(format string, v ...interface{}) {
	Logf(l.prefix+format, v...)
}
