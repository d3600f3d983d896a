// Package applog is the process-wide logger: a rotating file sink plus,
// optionally, stderr, with the teacher's first-time-only message
// suppression (spec.md §9) implemented as a per-Logger cache rather than a
// package-level global.
package applog

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a standard library logger over a size- and backup-bounded
// rotating file, matching the teacher's setupLogging but replacing the
// hand-rolled truncate-then-append fallback with lumberjack's rotation.
type Logger struct {
	out    *lumberjack.Logger
	std    *log.Logger
	toConsole bool

	mu      sync.Mutex
	warnedOnce map[string]bool
}

// New opens path for rotating writes. When toConsole is true, log lines are
// also written to stderr — used when the process is attached to a console
// (spec.md §6.7's "optional timestamped-file sink").
func New(path string, toConsole bool) *Logger {
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     0,
		Compress:   false,
	}

	var w io.Writer = out
	if toConsole {
		w = io.MultiWriter(out, os.Stderr)
	}

	return &Logger{
		out:        out,
		std:        log.New(w, "", log.LstdFlags),
		toConsole:  toConsole,
		warnedOnce: map[string]bool{},
	}
}

// Log writes an info-level line, matching spec.md §6.7's log(msg).
func (l *Logger) Log(msg string, args ...any) {
	l.std.Printf("[INFO] "+msg, args...)
}

// Error writes an error-level line, matching spec.md §6.7's error(msg).
func (l *Logger) Error(msg string, args ...any) {
	l.std.Printf("[ERROR] "+msg, args...)
}

// LogOnce writes msg only the first time it is seen for the given key,
// implementing spec.md §9's first-time-only log suppression without a
// package-level static set.
func (l *Logger) LogOnce(key, msg string, args ...any) {
	l.mu.Lock()
	if l.warnedOnce[key] {
		l.mu.Unlock()
		return
	}
	l.warnedOnce[key] = true
	l.mu.Unlock()
	l.Log(msg, args...)
}

// Close flushes and closes the rotating sink. cmd/padbridge calls it before
// the process exits, whether or not save_logs_on_exit is set.
func (l *Logger) Close() error {
	return l.out.Close()
}
