// Package logging holds the process-wide leveled logger.
package logging

import (
	"os"
	"sync"

	"github.com/jcgregorio/logger"
)

// Logger is the subset of *logger.Logger used by exprjit
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	mu      sync.RWMutex
	current Logger = New(os.Stderr, false)
)

// New returns a logger writing to w. Debug lines are only written when verbose is set.
func New(w logger.SyncWriter, verbose bool) Logger {
	return logger.NewFromOptions(&logger.Options{
		SyncWriter:   w,
		DepthDelta:   1,
		IncludeDebug: verbose,
	})
}

// Init replaces the process logger with one writing to stderr
func Init(verbose bool) {
	Set(New(os.Stderr, verbose))
}

// Set replaces the process logger
func Set(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// L returns the process logger
func L() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
