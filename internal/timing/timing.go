//go:build windows

// Package timing wraps the platform monotonic high-resolution counter used
// by the orchestrator's fixed-rate loop and by every component that needs
// to stamp a poll or a change with a tick.
package timing

import (
	"fmt"
	"sync"
	"time"
)

// Ticks is an opaque monotonic tick count. Only this package may convert it
// to a duration; callers compare and subtract it like any integer.
type Ticks int64

// Clock is a monotonic tick source. The zero value is not usable; call New.
type Clock struct {
	mu        sync.Mutex
	freq      int64
	start     time.Time
	startOnce bool
}

// New queries the platform's performance-counter frequency once. Failure to
// do so is fatal at process init, matching spec.md §4.1.
func New() (*Clock, error) {
	freq, err := queryFrequency()
	if err != nil {
		return nil, fmt.Errorf("timing: query frequency: %w", err)
	}
	if freq <= 0 {
		return nil, fmt.Errorf("timing: invalid frequency %d", freq)
	}
	return &Clock{freq: freq, start: time.Now()}, nil
}

// Now returns the current tick count relative to Clock creation.
func (c *Clock) Now() Ticks {
	return Ticks(time.Since(c.start).Nanoseconds() * c.freq / int64(time.Second))
}

// TicksToUs converts a tick delta to microseconds.
func (c *Clock) TicksToUs(d Ticks) float64 {
	return float64(d) * 1e6 / float64(c.freq)
}

// TicksToMs converts a tick delta to milliseconds.
func (c *Clock) TicksToMs(d Ticks) float64 {
	return float64(d) * 1e3 / float64(c.freq)
}

// UsToTicks converts a microsecond duration to ticks.
func (c *Clock) UsToTicks(us float64) Ticks {
	return Ticks(us * float64(c.freq) / 1e6)
}

// Frequency returns the counter frequency in Hz, mainly for diagnostics.
func (c *Clock) Frequency() int64 {
	return c.freq
}
