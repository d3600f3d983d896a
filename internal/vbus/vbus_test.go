//go:build windows
// +build windows

package vbus

import (
	"errors"
	"sync"
	"testing"

	"padbridge/internal/translate"
)

type fakeDriver struct {
	mu          sync.Mutex
	nextHandle  uintptr
	failUpdate  bool
	rumbleFuncs map[uintptr]func(byte, byte)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{nextHandle: 1, rumbleFuncs: map[uintptr]func(byte, byte){}}
}

func (d *fakeDriver) alloc() (uintptr, error)     { return 100, nil }
func (d *fakeDriver) free(uintptr)                {}
func (d *fakeDriver) connect(uintptr) error       { return nil }
func (d *fakeDriver) disconnect(uintptr)          {}

func (d *fakeDriver) targetAllocX360() uintptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextHandle++
	return d.nextHandle
}

func (d *fakeDriver) targetAllocDS4() uintptr {
	return d.targetAllocX360()
}

func (d *fakeDriver) targetFree(uintptr)              {}
func (d *fakeDriver) targetAdd(uintptr, uintptr) error { return nil }
func (d *fakeDriver) targetRemove(uintptr, uintptr) error { return nil }

func (d *fakeDriver) registerX360Notification(bus, target uintptr, cb func(largeMotor, smallMotor byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rumbleFuncs[target] = cb
	return nil
}

func (d *fakeDriver) unregisterX360Notification(target uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rumbleFuncs, target)
	return nil
}

func (d *fakeDriver) updateX360(bus, target uintptr, r translate.XboxReport) error {
	if d.failUpdate {
		return errors.New("fake: update failed")
	}
	return nil
}

func (d *fakeDriver) updateDS4(bus, target uintptr, r translate.DS4Report) error {
	if d.failUpdate {
		return errors.New("fake: update failed")
	}
	return nil
}

func TestCreateAndDestroyTarget(t *testing.T) {
	drv := newFakeDriver()
	e := newWithDriver(drv, nil)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer e.Shutdown()

	id, err := e.CreateTarget(translate.ProfileXboxStyle, 1, "pad1")
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero target id")
	}

	foundID, ok := e.FindTarget(1, translate.ProfileXboxStyle)
	if !ok || foundID != id {
		t.Fatalf("FindTarget = (%d, %v), want (%d, true)", foundID, ok, id)
	}

	if err := e.DestroyTarget(id); err != nil {
		t.Fatalf("DestroyTarget: %v", err)
	}
	if _, ok := e.FindTarget(1, translate.ProfileXboxStyle); ok {
		t.Fatal("target should no longer be findable after destroy")
	}
}

func TestSendClearsConnectedOnFailure(t *testing.T) {
	drv := newFakeDriver()
	e := newWithDriver(drv, nil)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer e.Shutdown()

	id, err := e.CreateTarget(translate.ProfileXboxStyle, 1, "pad1")
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	report := translate.TranslatedReport{Xbox: translate.XboxReport{Buttons: translate.ButtonA}}
	if err := e.Send(1, report); err != nil {
		t.Fatalf("Send: %v", err)
	}
	e.devicesMu.Lock()
	connected := e.targets[id].connected
	e.devicesMu.Unlock()
	if !connected {
		t.Fatal("expected target to stay connected after a successful send")
	}

	drv.failUpdate = true
	if err := e.Send(1, report); err == nil {
		t.Fatal("expected Send to report the driver failure")
	}
	e.devicesMu.Lock()
	connected = e.targets[id].connected
	e.devicesMu.Unlock()
	if connected {
		t.Fatal("expected target to be marked disconnected after a failed send")
	}
}

func TestRumbleCallbackNormalizesAndScales(t *testing.T) {
	drv := newFakeDriver()
	var gotUser int
	var gotLeft, gotRight float64
	e := newWithDriver(drv, func(linkedUser int, left, right float64) {
		gotUser, gotLeft, gotRight = linkedUser, left, right
	})
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer e.Shutdown()
	e.SetRumbleIntensity(0.5)

	if _, err := e.CreateTarget(translate.ProfileXboxStyle, 42, "pad1"); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	var cb func(byte, byte)
	drv.mu.Lock()
	for _, f := range drv.rumbleFuncs {
		cb = f
	}
	drv.mu.Unlock()
	if cb == nil {
		t.Fatal("expected a registered rumble callback")
	}

	cb(255, 128)
	if gotUser != 42 {
		t.Errorf("linked user = %d, want 42", gotUser)
	}
	if gotLeft < 0.49 || gotLeft > 0.51 {
		t.Errorf("left = %v, want ~0.5 (255/255 * 0.5 intensity)", gotLeft)
	}
	wantRight := 128.0 / 255 * 0.5
	if gotRight < wantRight-0.01 || gotRight > wantRight+0.01 {
		t.Errorf("right = %v, want ~%v", gotRight, wantRight)
	}
}

func TestRumbleCallbackSkippedWhenDisabled(t *testing.T) {
	drv := newFakeDriver()
	called := false
	e := newWithDriver(drv, func(linkedUser int, left, right float64) {
		called = true
	})
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer e.Shutdown()
	e.SetRumbleSettings(false, 1)

	if _, err := e.CreateTarget(translate.ProfileXboxStyle, 1, "pad1"); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	var cb func(byte, byte)
	drv.mu.Lock()
	for _, f := range drv.rumbleFuncs {
		cb = f
	}
	drv.mu.Unlock()
	if cb == nil {
		t.Fatal("expected a registered rumble callback")
	}

	cb(255, 255)
	if called {
		t.Error("expected onRumble to skip forwarding while rumble is disabled")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	drv := newFakeDriver()
	e := newWithDriver(drv, nil)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	e.Shutdown()
	e.Shutdown()
}
