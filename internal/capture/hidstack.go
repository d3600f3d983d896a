package capture

import (
	"strings"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"padbridge/internal/translate"
)

// hidInputBufferSize is the fixed per-slot input buffer size, >= 512 bytes
// per spec.md §4.2.
const hidInputBufferSize = 512

// virtualBusIDs identifies devices emitted by the virtual-bus driver this
// process itself creates, so refreshDevices never re-discovers its own
// virtual targets as physicals. ViGEm's bus emits Xbox-360-class and
// DualShock4-class targets under these vendor/product ID pairs.
var virtualBusIDs = map[[2]uint16]bool{
	{0x045e, 0x028e}: true, // Microsoft Xbox 360 pad (emulated)
	{0x054c, 0x05c4}: true, // Sony DualShock4 pad (emulated)
}

// virtualBusUIPropertyKey is the platform device-property key the
// virtual-bus driver sets on every target it creates (spec.md §4.2 step 2).
const virtualBusUIPropertyKey = "ViGEmBusUiNumber"

type hidDevice struct {
	dev    *hid.Device
	handle *HandleState
	path   string
	fields []fieldCap
}

// hidRegistry tracks one open handle per HID-stack device, keyed by
// instance id (not by a spec.md slot_id — HID-stack slots are always
// slot_id = -1 from the outside).
type hidRegistry struct {
	mu   sync.Mutex
	byID map[string]*hidDevice
}

func newHIDRegistry() *hidRegistry {
	return &hidRegistry{byID: map[string]*hidDevice{}}
}

func (r *hidRegistry) get(instanceID string) *hidDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[instanceID]
}

func (r *hidRegistry) set(instanceID string, d *hidDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[instanceID] = d
}

func (r *hidRegistry) remove(instanceID string) *hidDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.byID[instanceID]
	delete(r.byID, instanceID)
	return d
}

func (r *hidRegistry) all() map[string]*hidDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*hidDevice, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	return out
}

// isVirtualBusDevice implements the two disjoint OR'd criteria from
// spec.md §4.2 step 2.
func isVirtualBusDevice(info *hid.DeviceInfo, hasUIProperty bool) bool {
	if virtualBusIDs[[2]uint16{info.VendorID, info.ProductID}] {
		return true
	}
	return hasUIProperty
}

// isXInputInterface checks for the documented marker substring, per
// spec.md §4.2 step 3.
func isXInputInterface(path, instanceID string) bool {
	return strings.Contains(path, "IG_") || strings.Contains(instanceID, "IG_")
}

// xinputBaseID strips the trailing "&IG_…" suffix and everything after the
// first path separator following the `\\?\` device-path prefix, collapsing
// every interface of one physical XInput pad onto a single identity
// (spec.md §4.2 step 4).
func xinputBaseID(path string) string {
	start := 0
	if strings.HasPrefix(path, `\\?\`) {
		start = len(`\\?\`)
	}
	sep := strings.IndexAny(path[start:], `\/`)
	head := path
	if sep >= 0 {
		head = path[:start+sep]
	}
	if idx := strings.Index(head, "&IG_"); idx >= 0 {
		head = head[:idx]
	}
	return head
}

// isGamepadUsage filters to Generic-Desktop-page + usage in {Joystick,
// Gamepad}, per spec.md §4.2 step 5.
func isGamepadUsage(usagePage, usage uint16) bool {
	return usagePage == desktopUsagePage && (usage == 0x04 || usage == 0x05)
}

// openHIDDevice opens a generic-HID gamepad interface for overlapped-style
// read and fetches its report descriptor, building the field-cap table
// used by decodeReport. Returns nil, nil for interfaces that are not
// gamepads (caller should skip them; spec.md §4.2 step 5: non-gamepad
// devices are closed immediately).
func openHIDDevice(info *hid.DeviceInfo) (*hidDevice, error) {
	if !isGamepadUsage(info.UsagePage, info.Usage) {
		return nil, nil
	}

	dev, err := hid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}

	descBuf := make([]byte, 4096)
	n, err := dev.GetReportDescriptor(descBuf)
	if err != nil || n <= 0 {
		dev.Close()
		return nil, err
	}
	fields := parseReportDescriptor(descBuf[:n])

	return &hidDevice{
		dev:    dev,
		handle: newHandleState(),
		path:   info.Path,
		fields: fields,
	}, nil
}

// ensureReader starts the per-device reader goroutine if it is not already
// running. See SPEC_FULL.md §5 for why a reader goroutine + channel stands
// in for the spec's OVERLAPPED outstanding-read/completion-event pair.
func ensureReader(hd *hidDevice) {
	h := hd.handle
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.frames = make(chan []byte, 4)
	h.done = make(chan struct{})
	h.running = true
	done := h.done
	frames := h.frames
	h.mu.Unlock()

	go func(dev *hid.Device, frames chan []byte, done chan struct{}) {
		defer close(done)
		buf := make([]byte, hidInputBufferSize)
		for {
			n, err := dev.ReadWithTimeout(buf, 200*time.Millisecond)
			if err != nil {
				h.mu.Lock()
				h.running = false
				h.mu.Unlock()
				return
			}
			if n <= 0 {
				continue
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			select {
			case frames <- frame:
			default:
				// Drop the stale frame in favor of the freshest one: pop
				// and replace rather than blocking the reader.
				select {
				case <-frames:
				default:
				}
				select {
				case frames <- frame:
				default:
				}
			}
		}
	}(hd.dev, frames, done)
}

// pollHIDDevice implements spec.md §4.2's HID stack polling contract for
// one slot: non-blocking receive from the reader channel, decoding any
// frame that is ready.
func pollHIDDevice(hd *hidDevice) (translate.HIDReport, bool, error) {
	ensureReader(hd)
	h := hd.handle
	h.mu.Lock()
	frames := h.frames
	h.mu.Unlock()
	if frames == nil {
		return translate.HIDReport{}, false, nil
	}
	select {
	case frame, ok := <-frames:
		if !ok {
			return translate.HIDReport{}, false, nil
		}
		return decodeReport(hd.fields, frame), true, nil
	default:
		return translate.HIDReport{}, false, nil
	}
}

// closeHIDDevice closes the underlying handle, which unblocks the reader
// goroutine's in-flight read with an error and lets it exit on its own;
// it does not block waiting for that exit.
func closeHIDDevice(hd *hidDevice) {
	if hd == nil || hd.dev == nil {
		return
	}
	hd.dev.Close()
}
