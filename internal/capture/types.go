// Package capture enumerates and polls physical gamepads from both the
// XInput-style slotted stack and the generic HID stack, producing a
// point-in-time vector of PhysicalSnapshot on demand. See spec.md §4.2.
package capture

import (
	"sync"
	"time"

	"padbridge/internal/translate"
)

// MaxXInputSlots is the platform constant bounding the XInput-stack slot
// range (spec.md §3).
const MaxXInputSlots = 4

// HIDSlotID marks a PhysicalSnapshot as belonging to the HID stack rather
// than a numbered XInput slot.
const HIDSlotID = -1

// XInputReport is the last successful XInput-stack report for one slot,
// plus its monotonic packet counter. Defined in translate so the
// translation pipeline's source-classification and canonical-copy logic
// can consume it without importing capture (which would create an import
// cycle, since capture already imports translate for HIDReport).
type XInputReport = translate.XInputReport

// HandleState tracks the HID-only asynchronous read bookkeeping described
// in spec.md §4.2. It is implemented with a reader goroutine and a
// buffered channel rather than a raw OVERLAPPED struct — see SPEC_FULL.md
// §5 — so "outstanding" means the reader goroutine is alive and "complete"
// means the channel has a buffered frame ready to receive.
type HandleState struct {
	mu        sync.Mutex
	frames    chan []byte
	done      chan struct{}
	running   bool
	closeOnce sync.Once
}

func newHandleState() *HandleState {
	return &HandleState{}
}

// Outstanding reports whether a reader goroutine is currently alive for
// this device.
func (h *HandleState) Outstanding() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// PhysicalSnapshot is one enumerated physical slot, connected or not, per
// spec.md §3.
type PhysicalSnapshot struct {
	SlotID      int
	Connected   bool
	InstanceID  string
	DevicePath  string
	ProductName string

	RawXInput XInputReport
	HasXInput bool

	RawHID    translate.HIDReport
	HasHID    bool

	LastError error
	Timestamp time.Time

	handle *HandleState
}

// ToTranslateInput projects the fields the translation pipeline needs,
// leaving out everything that pipeline has no business depending on
// (instance ids, timestamps, handle bookkeeping).
func (s PhysicalSnapshot) ToTranslateInput() translate.PhysicalInput {
	return translate.PhysicalInput{
		SlotID:      s.SlotID,
		Connected:   s.Connected,
		DevicePath:  s.DevicePath,
		ProductName: s.ProductName,
		RawXInput:   s.RawXInput,
		HasXInput:   s.HasXInput,
		RawHID:      s.RawHID,
		HasHID:      s.HasHID,
	}
}
