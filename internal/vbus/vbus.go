//go:build windows
// +build windows

// Package vbus owns virtual gamepad targets on the virtual-bus driver: it
// creates and destroys them, submits translated reports, and routes rumble
// notifications back to the caller. See spec.md §4.4.
package vbus

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"padbridge/internal/translate"
)

// driver is the minimal surface the emulator needs from the virtual-bus
// client library. The real binding (vbus_windows.go) talks to
// ViGEmClient.dll; tests supply a fake so the reconciliation logic above is
// exercised without a live driver.
type driver interface {
	alloc() (uintptr, error)
	free(bus uintptr)
	connect(bus uintptr) error
	disconnect(bus uintptr)

	targetAllocX360() uintptr
	targetAllocDS4() uintptr
	targetFree(target uintptr)
	targetAdd(bus, target uintptr) error
	targetRemove(bus, target uintptr) error

	registerX360Notification(bus, target uintptr, cb func(largeMotor, smallMotor byte)) error
	unregisterX360Notification(target uintptr) error

	updateX360(bus, target uintptr, r translate.XboxReport) error
	updateDS4(bus, target uintptr, r translate.DS4Report) error
}

// VirtualTarget is one emulated gamepad registered with the bus driver.
type VirtualTarget struct {
	ID         uint64
	Profile    translate.Profile
	LinkedUser int
	SourceName string

	connected bool
	handle    uintptr
}

// Connected reports whether the last submission to this target succeeded.
func (t *VirtualTarget) Connected() bool {
	return t.connected
}

type queuedSend struct {
	targetID uint64
	xbox     translate.XboxReport
	ds4      translate.DS4Report
}

// Emulator implements spec.md §4.4's lifecycle and submission contract.
type Emulator struct {
	drv driver

	devicesMu sync.Mutex
	busHandle uintptr
	connected bool
	targets   map[uint64]*VirtualTarget
	nextID    uint64

	rumbleCallback  func(linkedUser int, left, right float64)
	rumbleEnabled   bool
	rumbleIntensity float64

	queueMu sync.Mutex
	queue   []queuedSend

	stop     chan struct{}
	workerWG sync.WaitGroup

	errMu     sync.Mutex
	lastError error
}

// New returns an uninitialized emulator. Call Initialize before any other
// method does useful work.
func New(rumbleCallback func(linkedUser int, left, right float64)) *Emulator {
	return &Emulator{
		drv:             defaultDriver(),
		targets:         map[uint64]*VirtualTarget{},
		rumbleCallback:  rumbleCallback,
		rumbleEnabled:   true,
		rumbleIntensity: 1,
	}
}

// newWithDriver is used by tests to inject a fake bus driver.
func newWithDriver(drv driver, rumbleCallback func(linkedUser int, left, right float64)) *Emulator {
	e := New(rumbleCallback)
	e.drv = drv
	return e
}

// Initialize allocates a bus client and connects it, then starts the
// background submit worker. Failure leaves the emulator uninitialized;
// CreateTarget and Send then return an error without touching the driver.
func (e *Emulator) Initialize() error {
	handle, err := e.drv.alloc()
	if err != nil {
		e.setErr(err)
		return err
	}
	if err := e.drv.connect(handle); err != nil {
		e.drv.free(handle)
		e.setErr(err)
		return err
	}

	e.devicesMu.Lock()
	e.busHandle = handle
	e.connected = true
	e.devicesMu.Unlock()

	e.stop = make(chan struct{})
	e.workerWG.Add(1)
	go e.submitWorker()
	return nil
}

// SetRumbleIntensity clamps and stores the global rumble scaling factor.
func (e *Emulator) SetRumbleIntensity(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.devicesMu.Lock()
	e.rumbleIntensity = v
	e.devicesMu.Unlock()
}

// SetRumbleSettings sets whether onRumble forwards notifications to the
// caller-supplied callback and the global intensity it scales them by. The
// orchestrator calls this every tick from the dashboard's live settings.
func (e *Emulator) SetRumbleSettings(enabled bool, intensity float64) {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	e.devicesMu.Lock()
	e.rumbleEnabled = enabled
	e.rumbleIntensity = intensity
	e.devicesMu.Unlock()
}

// CreateTarget implements spec.md §4.4's create_target: the handle is
// acquired from the bus driver and registered for rumble notifications
// (Xbox-style only) before the record is published, so there is no
// half-created VirtualTarget visible to callers.
func (e *Emulator) CreateTarget(profile translate.Profile, linkedUser int, sourceName string) (uint64, error) {
	e.devicesMu.Lock()
	if !e.connected {
		e.devicesMu.Unlock()
		return 0, fmt.Errorf("vbus: not initialized")
	}
	bus := e.busHandle
	e.devicesMu.Unlock()

	var handle uintptr
	switch profile {
	case translate.ProfileXboxStyle:
		handle = e.drv.targetAllocX360()
	case translate.ProfileDS4Style:
		handle = e.drv.targetAllocDS4()
	default:
		return 0, fmt.Errorf("vbus: unknown profile %v", profile)
	}

	if err := e.drv.targetAdd(bus, handle); err != nil {
		e.drv.targetFree(handle)
		e.setErr(err)
		return 0, err
	}

	if profile == translate.ProfileXboxStyle {
		cb := func(largeMotor, smallMotor byte) { e.onRumble(linkedUser, largeMotor, smallMotor) }
		if err := e.drv.registerX360Notification(bus, handle, cb); err != nil {
			e.drv.targetRemove(bus, handle)
			e.drv.targetFree(handle)
			e.setErr(err)
			return 0, err
		}
	}

	e.devicesMu.Lock()
	e.nextID++
	id := e.nextID
	e.targets[id] = &VirtualTarget{
		ID:         id,
		Profile:    profile,
		LinkedUser: linkedUser,
		SourceName: sourceName,
		connected:  true,
		handle:     handle,
	}
	e.devicesMu.Unlock()
	return id, nil
}

// DestroyTarget implements spec.md §4.4's destroy_target.
func (e *Emulator) DestroyTarget(id uint64) error {
	e.devicesMu.Lock()
	t, ok := e.targets[id]
	if !ok {
		e.devicesMu.Unlock()
		return fmt.Errorf("vbus: unknown target %d", id)
	}
	bus := e.busHandle
	delete(e.targets, id)
	e.devicesMu.Unlock()

	if t.Profile == translate.ProfileXboxStyle {
		e.drv.unregisterX360Notification(t.handle)
	}
	err := e.drv.targetRemove(bus, t.handle)
	e.drv.targetFree(t.handle)
	return err
}

// FindTarget returns the target matching linkedUser and profile, if any.
func (e *Emulator) FindTarget(linkedUser int, profile translate.Profile) (uint64, bool) {
	e.devicesMu.Lock()
	defer e.devicesMu.Unlock()
	for id, t := range e.targets {
		if t.LinkedUser == linkedUser && t.Profile == profile {
			return id, true
		}
	}
	return 0, false
}

// Send implements spec.md §4.4's submission contract: for each live target
// of linkedUser, submit that target's profile encoding of the translated
// report synchronously. A submission failure clears the target's connected
// flag and is not retried in-line; the first failure is returned.
func (e *Emulator) Send(linkedUser int, report translate.TranslatedReport) error {
	e.devicesMu.Lock()
	if !e.connected {
		e.devicesMu.Unlock()
		return fmt.Errorf("vbus: not initialized")
	}
	bus := e.busHandle
	var targets []*VirtualTarget
	for _, t := range e.targets {
		if t.LinkedUser == linkedUser {
			targets = append(targets, t)
		}
	}
	e.devicesMu.Unlock()

	if len(targets) == 0 {
		return fmt.Errorf("vbus: no target for user %d", linkedUser)
	}

	var firstErr error
	for _, target := range targets {
		var err error
		switch target.Profile {
		case translate.ProfileXboxStyle:
			err = e.drv.updateX360(bus, target.handle, report.Xbox)
		case translate.ProfileDS4Style:
			err = e.drv.updateDS4(bus, target.handle, report.DS4)
		}

		e.devicesMu.Lock()
		target.connected = err == nil
		e.devicesMu.Unlock()

		if err != nil {
			e.setErr(err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Enqueue hands a report to the secondary submit worker's retry queue
// instead of submitting it immediately. Used by callers that accept
// best-effort, delayed delivery over dropped reports.
func (e *Emulator) Enqueue(targetID uint64, report translate.TranslatedReport) {
	e.queueMu.Lock()
	e.queue = append(e.queue, queuedSend{targetID: targetID, xbox: report.Xbox, ds4: report.DS4})
	e.queueMu.Unlock()
}

// submitWorker drains the retry queue at high frequency; it locks itself to
// one OS thread and elevates that thread's priority (spec.md §4.4), since
// Go otherwise gives it no scheduling priority over the rest of the process.
func (e *Emulator) submitWorker() {
	defer e.workerWG.Done()
	runtime.LockOSThread()
	elevateCurrentThreadPriority()
	ticker := time.NewTicker(100 * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.drainQueue()
		}
	}
}

func (e *Emulator) drainQueue() {
	e.queueMu.Lock()
	if len(e.queue) == 0 {
		e.queueMu.Unlock()
		return
	}
	item := e.queue[0]
	e.queue = e.queue[1:]
	e.queueMu.Unlock()

	e.devicesMu.Lock()
	bus := e.busHandle
	t := e.targets[item.targetID]
	e.devicesMu.Unlock()
	if t == nil {
		return
	}

	var err error
	switch t.Profile {
	case translate.ProfileXboxStyle:
		err = e.drv.updateX360(bus, t.handle, item.xbox)
	case translate.ProfileDS4Style:
		err = e.drv.updateDS4(bus, t.handle, item.ds4)
	}

	e.devicesMu.Lock()
	t.connected = err == nil
	e.devicesMu.Unlock()
	if err != nil {
		e.setErr(err)
	}
}

// onRumble is the bus driver's notification callback, normalized per
// spec.md §4.4: left/right in [0,1], scaled by the global rumble intensity,
// before invoking the caller-supplied callback. Runs on the driver's
// thread; must stay cheap.
func (e *Emulator) onRumble(linkedUser int, largeMotor, smallMotor byte) {
	e.devicesMu.Lock()
	enabled := e.rumbleEnabled
	intensity := e.rumbleIntensity
	e.devicesMu.Unlock()

	if !enabled || e.rumbleCallback == nil {
		return
	}

	left := float64(largeMotor) / 255 * intensity
	right := float64(smallMotor) / 255 * intensity
	e.rumbleCallback(linkedUser, left, right)
}

// Shutdown implements spec.md §4.4's idempotent shutdown: stop the worker,
// destroy all targets, disconnect and free the bus client.
func (e *Emulator) Shutdown() {
	e.devicesMu.Lock()
	wasConnected := e.connected
	e.connected = false
	bus := e.busHandle
	ids := make([]uint64, 0, len(e.targets))
	for id := range e.targets {
		ids = append(ids, id)
	}
	e.devicesMu.Unlock()

	if e.stop != nil {
		select {
		case <-e.stop:
		default:
			close(e.stop)
		}
		e.workerWG.Wait()
	}

	for _, id := range ids {
		e.DestroyTarget(id)
	}

	if wasConnected {
		e.drv.disconnect(bus)
		e.drv.free(bus)
	}
}

// LastError returns the most recent failure reason.
func (e *Emulator) LastError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastError
}

func (e *Emulator) setErr(err error) {
	e.errMu.Lock()
	e.lastError = err
	e.errMu.Unlock()
}
