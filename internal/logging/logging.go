// Package logging is a thin shim around the reactor's logging facade.
//
// Production code always goes through github.com/moqsien/processes/logger,
// the facade used throughout the reference reactor's poll, sys and conn
// packages (logger.Warningf, logger.Errorf, logger.Println). The shim
// exists only so tests can substitute a capturing Logger without pulling
// the real sink into the test binary.
package logging

import (
	"fmt"

	"github.com/moqsien/processes/logger"
)

// Logger is the severity-leveled facade every reactor package logs
// through. debug/info/warn/error mirrors the four levels named in the
// specification's observability surface.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// processLogger forwards to github.com/moqsien/processes/logger. Debugf and
// Infof route through Println rather than level-specific calls: the
// reference reactor's own call sites never log at those levels, only
// Warningf, Errorf and Println, so those are the only logger functions
// this shim assumes exist.
type processLogger struct{}

func (processLogger) Debugf(format string, args ...any) {
	logger.Println(fmt.Sprintf("[debug] "+format, args...))
}
func (processLogger) Infof(format string, args ...any) {
	logger.Println(fmt.Sprintf("[info] "+format, args...))
}
func (processLogger) Warnf(format string, args ...any)  { logger.Warningf(format, args...) }
func (processLogger) Errorf(format string, args ...any) { logger.Errorf(format, args...) }

// Default is the process-wide logger used when a component isn't given
// one explicitly. It is never mutated after process init, so reads from
// multiple goroutines are safe without synchronization.
var Default Logger = processLogger{}

// Capturing is a Logger that buffers formatted lines in memory, used by
// tests that want to assert on a diagnostic without touching stderr.
type Capturing struct {
	Lines []string
}

func (c *Capturing) Debugf(format string, args ...any) { c.append("DEBUG", format, args...) }
func (c *Capturing) Infof(format string, args ...any)  { c.append("INFO", format, args...) }
func (c *Capturing) Warnf(format string, args ...any)  { c.append("WARN", format, args...) }
func (c *Capturing) Errorf(format string, args ...any) { c.append("ERROR", format, args...) }

func (c *Capturing) append(level, format string, args ...any) {
	c.Lines = append(c.Lines, level+" "+fmt.Sprintf(format, args...))
}
