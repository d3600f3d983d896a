package manager

import (
	"testing"
	"time"

	"padbridge/internal/capture"
	"padbridge/internal/translate"
)

type fakeFilter struct {
	connected bool
	blacklist map[string]bool
	failAdd   map[string]bool
}

func newFakeFilter(connected bool) *fakeFilter {
	return &fakeFilter{connected: connected, blacklist: map[string]bool{}, failAdd: map[string]bool{}}
}

func (f *fakeFilter) Connected() bool { return f.connected }

func (f *fakeFilter) AddToBlacklist(id string) error {
	if f.failAdd[id] {
		return errStub
	}
	f.blacklist[id] = true
	return nil
}

func (f *fakeFilter) RemoveFromBlacklist(id string) error {
	delete(f.blacklist, id)
	return nil
}

func (f *fakeFilter) Disconnect() { f.connected = false }

var errStub = &stubError{"stub failure"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }

type fakeEmulator struct {
	nextID  uint64
	created map[uint64]translate.Profile
}

func newFakeEmulator() *fakeEmulator {
	return &fakeEmulator{created: map[uint64]translate.Profile{}}
}

func (f *fakeEmulator) CreateTarget(profile translate.Profile, linkedUser int, sourceName string) (uint64, error) {
	f.nextID++
	f.created[f.nextID] = profile
	return f.nextID, nil
}

func (f *fakeEmulator) DestroyTarget(id uint64) error {
	delete(f.created, id)
	return nil
}

func TestProcessMasksEligibleHIDDeviceOnce(t *testing.T) {
	filter := newFakeFilter(true)
	emu := newFakeEmulator()
	m := New(filter, emu)
	m.SetMaskingEnabled(true)

	snap := []capture.PhysicalSnapshot{
		{SlotID: -1, Connected: true, InstanceID: "HID\\VID_1&PID_2\\SN1"},
	}
	m.Process(snap, Directions{DIToXI: true}, false, time.Now())
	m.Process(snap, Directions{DIToXI: true}, false, time.Now())

	if !filter.blacklist["HID\\VID_1&PID_2\\SN1"] {
		t.Fatal("expected instance to be masked")
	}
	if len(filter.blacklist) != 1 {
		t.Fatalf("expected exactly one blacklist entry, got %d", len(filter.blacklist))
	}
}

func TestProcessDoesNotMaskXInputSlot(t *testing.T) {
	filter := newFakeFilter(true)
	emu := newFakeEmulator()
	m := New(filter, emu)
	m.SetMaskingEnabled(true)

	snap := []capture.PhysicalSnapshot{
		{SlotID: 0, Connected: true, InstanceID: "XINPUT-SLOT-0"},
	}
	m.Process(snap, Directions{DIToXI: true}, false, time.Now())
	if len(filter.blacklist) != 0 {
		t.Fatal("XInput-stack slots must never be masked")
	}
}

func TestProcessCreatesAndDestroysVirtualTargets(t *testing.T) {
	filter := newFakeFilter(false)
	emu := newFakeEmulator()
	m := New(filter, emu)

	connected := []capture.PhysicalSnapshot{
		{SlotID: 0, Connected: true, InstanceID: "pad0"},
	}
	m.Process(connected, Directions{XIToDI: true}, true, time.Now())
	if len(emu.created) != 1 {
		t.Fatalf("expected 1 virtual target created, got %d", len(emu.created))
	}
	for _, profile := range emu.created {
		if profile != translate.ProfileDS4Style {
			t.Fatalf("XIToDI must create a DS4-style target, got %v", profile)
		}
	}

	// Same physical still connected next tick: no duplicate target.
	m.Process(connected, Directions{XIToDI: true}, true, time.Now())
	if len(emu.created) != 1 {
		t.Fatalf("expected target creation to be idempotent, got %d", len(emu.created))
	}

	disconnected := []capture.PhysicalSnapshot{
		{SlotID: 0, Connected: false, InstanceID: "pad0"},
	}
	m.Process(disconnected, Directions{XIToDI: true}, true, time.Now())
	if len(emu.created) != 0 {
		t.Fatalf("expected virtual target to be destroyed on disconnect, got %d remaining", len(emu.created))
	}
}

func TestProcessCreatesTargetProfileMatchingDirection(t *testing.T) {
	filter := newFakeFilter(false)

	xiToDI := newFakeEmulator()
	m := New(filter, xiToDI)
	snap := []capture.PhysicalSnapshot{{SlotID: 0, Connected: true, InstanceID: "pad0"}}
	m.Process(snap, Directions{XIToDI: true}, true, time.Now())
	for _, profile := range xiToDI.created {
		if profile != translate.ProfileDS4Style {
			t.Fatalf("XIToDI: expected translate.ProfileDS4Style, got %v", profile)
		}
	}

	diToXI := newFakeEmulator()
	m = New(filter, diToXI)
	m.Process(snap, Directions{DIToXI: true}, true, time.Now())
	for _, profile := range diToXI.created {
		if profile != translate.ProfileXboxStyle {
			t.Fatalf("DIToXI: expected translate.ProfileXboxStyle, got %v", profile)
		}
	}
}

func TestProcessSkipsTargetCreationDuringMaskPause(t *testing.T) {
	filter := newFakeFilter(true)
	emu := newFakeEmulator()
	m := New(filter, emu)
	m.SetMaskingEnabled(true)

	base := time.Now()
	snap := []capture.PhysicalSnapshot{
		{SlotID: -1, Connected: true, InstanceID: "pad-hid-1"},
	}
	m.Process(snap, Directions{DIToXI: true}, true, base)
	if len(emu.created) != 0 {
		t.Fatalf("expected target creation to be paused right after first mask, got %d", len(emu.created))
	}

	m.Process(snap, Directions{DIToXI: true}, true, base.Add(150*time.Millisecond))
	if len(emu.created) != 1 {
		t.Fatalf("expected target creation to proceed once the pause elapses, got %d", len(emu.created))
	}
}

func TestFailedToHideIsNotRetried(t *testing.T) {
	filter := newFakeFilter(true)
	filter.failAdd["pad-bad"] = true
	emu := newFakeEmulator()
	m := New(filter, emu)
	m.SetMaskingEnabled(true)

	snap := []capture.PhysicalSnapshot{{SlotID: -1, Connected: true, InstanceID: "pad-bad"}}
	m.Process(snap, Directions{DIToXI: true}, false, time.Now())
	m.Process(snap, Directions{DIToXI: true}, false, time.Now())

	if len(filter.blacklist) != 0 {
		t.Fatal("expected the mask attempt to have failed both times")
	}
	if m.LastError() == nil {
		t.Fatal("expected LastError to be set")
	}
}

func TestCleanupUnmasksAndDestroysEverything(t *testing.T) {
	filter := newFakeFilter(true)
	emu := newFakeEmulator()
	m := New(filter, emu)
	m.SetMaskingEnabled(true)

	snap := []capture.PhysicalSnapshot{{SlotID: -1, Connected: true, InstanceID: "pad-1"}}
	m.Process(snap, Directions{DIToXI: true}, true, time.Now())
	m.Process(snap, Directions{DIToXI: true}, true, time.Now().Add(200*time.Millisecond))

	m.Cleanup()

	if len(filter.blacklist) != 0 {
		t.Error("expected blacklist to be emptied on cleanup")
	}
	if filter.connected {
		t.Error("expected filter to be disconnected on cleanup")
	}
	if len(emu.created) != 0 {
		t.Error("expected all virtual targets to be destroyed on cleanup")
	}
}
