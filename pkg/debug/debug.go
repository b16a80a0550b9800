// Package debug provides conditional debug logging for nodeview.
//
// Debug logging is enabled by setting the NV_DEBUG environment variable:
//
//	NV_DEBUG=1 nv ~/src
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions return immediately.
//
// Usage:
//
//	import "github.com/vanderheijden86/nodeview/pkg/debug"
//
//	func replay() {
//	    defer debug.LogEnterExit("replay")()
//	    debug.Log("replaying %d events", n)
//	}
package debug

import (
	"log"
	"os"
	"sync/atomic"
	"time"
)

var (
	// enabled is true when NV_DEBUG env var is set
	enabled atomic.Bool
	// logger writes to stderr with [NV_DEBUG] prefix
	logger = log.New(os.Stderr, "[NV_DEBUG] ", log.Ltime|log.Lmicroseconds)
)

func init() {
	if os.Getenv("NV_DEBUG") != "" {
		enabled.Store(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// SetLogger redirects debug output. Passing nil restores stderr.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(os.Stderr, "[NV_DEBUG] ", log.Ltime|log.Lmicroseconds)
	}
	logger = l
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Printf(format, args...)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond || !enabled.Load() {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func replay() {
//	    defer debug.LogEnterExit("replay")()
//	}
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}
