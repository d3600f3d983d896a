// Package orchestrator is the fixed-rate driver spec.md §4.7 describes: it
// runs capture, the device manager, translation and the emulator in a
// tight per-tick sequence, decides when to refresh device enumeration, and
// paces itself to a target tick period.
package orchestrator

import (
	"sync/atomic"
	"time"

	"padbridge/internal/capture"
	"padbridge/internal/dashboard"
	"padbridge/internal/manager"
	"padbridge/internal/translate"
)

// refreshIntervalIdle and refreshIntervalActive are spec.md §4.7 step 5's
// adaptive-refresh constants.
const (
	refreshIntervalIdle   = 5 * time.Second
	refreshIntervalActive = 30 * time.Second
)

// capturer is the subset of *capture.Capture the loop depends on.
type capturer interface {
	Update(now time.Time)
	Get(out []capture.PhysicalSnapshot) []capture.PhysicalSnapshot
	RefreshDevices() error
	LastError() error
	Shutdown()
}

// reconciler is the subset of *manager.Manager the loop depends on.
type reconciler interface {
	SetMaskingEnabled(bool)
	Process(snapshot []capture.PhysicalSnapshot, dirs manager.Directions, translationEnabled bool, now time.Time)
	Cleanup()
	LastError() error
}

// sender is the subset of *vbus.Emulator the loop depends on.
type sender interface {
	Send(linkedUser int, report translate.TranslatedReport) error
	SetRumbleSettings(enabled bool, intensity float64)
	Shutdown()
}

// board is the subset of *dashboard.Dashboard the loop depends on.
type board interface {
	Settings() dashboard.Settings
	SetSnapshot(snap []capture.PhysicalSnapshot)
	SetStats(dashboard.PerfCounters)
	TakeRefreshRequest() bool
}

// Loop implements spec.md §4.7's per-tick sequence.
type Loop struct {
	capture  capturer
	manager  reconciler
	emulator sender
	board    board

	pollingHz int
	ledger    *translate.DebounceLedger

	// Per-tick scratch buffers, reused across ticks to avoid per-tick
	// dynamic allocation (spec.md §9).
	snapshotBuf   []capture.PhysicalSnapshot
	inputsBuf     []translate.PhysicalInput
	translatedBuf []translate.TranslatedReport

	lastRefresh time.Time

	stop atomic.Bool
}

// New wires the components the tick sequence drives. pollingHz is spec.md
// §6 point 6's polling_frequency (default 1000).
func New(c capturer, m reconciler, e sender, b board, pollingHz int) *Loop {
	if pollingHz <= 0 {
		pollingHz = 1000
	}
	return &Loop{
		capture:   c,
		manager:   m,
		emulator:  e,
		board:     b,
		pollingHz: pollingHz,
		ledger:    translate.NewDebounceLedger(),
	}
}

// Stop flips the atomic stop flag the loop observes at the top of every
// tick (spec.md §4.7's console-control-handler contract).
func (l *Loop) Stop() { l.stop.Store(true) }

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool { return l.stop.Load() }

// adaptiveRefreshInterval implements spec.md §4.7 step 5's adaptive policy.
func adaptiveRefreshInterval(connectedCount int) time.Duration {
	if connectedCount == 0 {
		return refreshIntervalIdle
	}
	return refreshIntervalActive
}

// tickSleepDuration pads elapsed up to period; an overrun sleeps zero and
// lets the next tick absorb the shortfall (spec.md §4.7 step 6).
func tickSleepDuration(elapsed, period time.Duration) time.Duration {
	remaining := period - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// buildTranslationConfig maps the dashboard's live settings onto the
// translation pipeline's config shape.
func buildTranslationConfig(s dashboard.Settings, profiles translate.DeviceProfileTable) translate.TranslationConfig {
	return translate.TranslationConfig{
		SOCDEnabled:        s.SOCDEnabled,
		SOCDMethod:         s.SOCDMethod,
		DebounceEnabled:    s.DebounceEnabled,
		DebounceIntervalMs: s.DebounceIntervalMs,
		DeadzoneEnabled:    s.DeadzoneEnabled,
		LeftDZ:             s.LeftDZ,
		RightDZ:            s.RightDZ,
		LeftAntiDZ:         s.LeftAntiDZ,
		RightAntiDZ:        s.RightAntiDZ,
		Profiles:           profiles,
	}
}

func countConnected(snapshot []capture.PhysicalSnapshot) int {
	n := 0
	for _, s := range snapshot {
		if s.Connected {
			n++
		}
	}
	return n
}

// Run executes the fixed-rate loop until Stop is called. It always leaves
// every owned component in its shutdown state before returning, including
// when the caller stops it mid-tick.
func (l *Loop) Run(profiles translate.DeviceProfileTable) {
	period := time.Second / time.Duration(l.pollingHz)
	l.lastRefresh = time.Time{}

	for !l.stop.Load() {
		tickStart := time.Now()

		l.capture.Update(tickStart)
		l.snapshotBuf = l.capture.Get(l.snapshotBuf)
		snapshot := l.snapshotBuf

		settings := l.board.Settings()
		dirs := manager.Directions{XIToDI: settings.XIToDI, DIToXI: settings.DIToXI}
		l.manager.SetMaskingEnabled(settings.MaskingEnabled)
		l.manager.Process(snapshot, dirs, settings.TranslationEnabled, tickStart)
		l.emulator.SetRumbleSettings(settings.RumbleEnabled, settings.RumbleIntensity)

		connected := 0
		if settings.TranslationEnabled {
			cfg := buildTranslationConfig(settings, profiles)
			l.inputsBuf = l.inputsBuf[:0]
			for _, s := range snapshot {
				l.inputsBuf = append(l.inputsBuf, s.ToTranslateInput())
			}
			l.translatedBuf = translate.Translate(l.inputsBuf, cfg, l.ledger, tickStart, l.translatedBuf)
			for _, report := range l.translatedBuf {
				l.emulator.Send(report.SlotID, report)
			}
			connected = len(l.translatedBuf)
		}

		if l.board.TakeRefreshRequest() || tickStart.Sub(l.lastRefresh) >= adaptiveRefreshInterval(countConnected(snapshot)) {
			l.capture.RefreshDevices()
			l.lastRefresh = tickStart
		}

		l.board.SetSnapshot(snapshot)
		elapsed := time.Since(tickStart)
		l.board.SetStats(dashboard.PerfCounters{
			LastTickDurationUs:      float64(elapsed.Microseconds()),
			ConnectedPhysicals:      countConnected(snapshot),
			ConnectedVirtualTargets: connected,
		})

		time.Sleep(tickSleepDuration(elapsed, period))
	}

	l.Shutdown()
}

// Shutdown implements spec.md §5's resource-release contract: manager,
// then emulator, then capture, each idempotent.
func (l *Loop) Shutdown() {
	l.manager.Cleanup()
	l.emulator.Shutdown()
	l.capture.Shutdown()
}
