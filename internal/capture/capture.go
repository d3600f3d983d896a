//go:build windows
// +build windows

package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"padbridge/internal/profilecache"
)

// Capture owns every physical device handle and produces, on demand, the
// point-in-time snapshot vector spec.md §4.2 describes. There is no
// dedicated polling thread; the orchestrator drives Update() on its tick.
// All reads of the snapshot vector copy under a single mutex, matching
// spec.md §5's locking discipline (lock order 1).
type Capture struct {
	mu sync.Mutex

	xinputSlots [MaxXInputSlots]PhysicalSnapshot
	xinputInstance [MaxXInputSlots]string

	hidOrder     []string // instance ids, discovery order — preserved for
	hidSlots     map[string]PhysicalSnapshot
	hidDevices   map[string]*hidDevice

	cache *profilecache.Cache

	lastError error
}

// New returns an empty Capture ready for RefreshDevices/Update.
func New() *Capture {
	c := &Capture{
		hidSlots:   map[string]PhysicalSnapshot{},
		hidDevices: map[string]*hidDevice{},
	}
	for slot := range c.xinputSlots {
		c.xinputSlots[slot].SlotID = slot
	}
	return c
}

// SetProfileCache wires an optional connection-profile cache (spec.md §9's
// supplemented feature): every first-contact HID open gets recorded under
// its VID/PID/usage fingerprint. Capture does not read recorded entries
// back to skip any work (openHIDDevice still fetches the descriptor on
// every open). A nil cache (the default) disables recording; capture's
// behavior is identical either way.
func (c *Capture) SetProfileCache(cache *profilecache.Cache) {
	c.mu.Lock()
	c.cache = cache
	c.mu.Unlock()
}

// computeInstanceID approximates the spec's stable OS device-instance
// identifier from what go-hid's enumeration exposes. A real SetupAPI
// instance id is not reachable through this binding; VID/PID plus serial
// (or interface number, for devices without one) is stable across
// reconnects for the same physical device, which is the property that
// matters here. See DESIGN.md.
func computeInstanceID(info *hid.DeviceInfo) string {
	if info.SerialNbr != "" {
		return fmt.Sprintf(`HID\VID_%04X&PID_%04X\%s`, info.VendorID, info.ProductID, info.SerialNbr)
	}
	return fmt.Sprintf(`HID\VID_%04X&PID_%04X\IF%d`, info.VendorID, info.ProductID, info.InterfaceNbr)
}

// RefreshDevices implements spec.md §4.2's enumeration contract.
func (c *Capture) RefreshDevices() error {
	var infos []hid.DeviceInfo
	err := hid.Enumerate(0, 0, func(info *hid.DeviceInfo) error {
		infos = append(infos, *info)
		return nil
	})
	if err != nil {
		c.mu.Lock()
		c.lastError = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	claimedBase := map[string]int{}
	for slot, inst := range c.xinputInstance {
		if inst != "" {
			if info := c.findHIDInfoByInstance(infos, inst); info != nil {
				claimedBase[xinputBaseID(info.Path)] = slot
			}
		}
	}

	for i := range infos {
		info := &infos[i]
		if isVirtualBusDevice(info, false) {
			continue
		}
		instanceID := computeInstanceID(info)

		if isXInputInterface(info.Path, instanceID) {
			c.refreshXInputCandidate(info, instanceID, claimedBase)
			continue
		}

		c.refreshHIDCandidate(info, instanceID)
	}

	return nil
}

func (c *Capture) findHIDInfoByInstance(infos []hid.DeviceInfo, instanceID string) *hid.DeviceInfo {
	for i := range infos {
		if computeInstanceID(&infos[i]) == instanceID {
			return &infos[i]
		}
	}
	return nil
}

func (c *Capture) refreshXInputCandidate(info *hid.DeviceInfo, instanceID string, claimedBase map[string]int) {
	base := xinputBaseID(info.Path)

	for slot, inst := range c.xinputInstance {
		if inst == instanceID {
			c.xinputSlots[slot].DevicePath = info.Path
			return
		}
	}

	if slot, ok := claimedBase[base]; ok {
		c.xinputInstance[slot] = instanceID
		c.xinputSlots[slot].InstanceID = instanceID
		c.xinputSlots[slot].DevicePath = info.Path
		c.xinputSlots[slot].ProductName = info.ProductStr
		c.xinputSlots[slot].SlotID = slot
		return
	}

	for slot := 0; slot < MaxXInputSlots; slot++ {
		if c.xinputInstance[slot] == "" {
			c.xinputInstance[slot] = instanceID
			claimedBase[base] = slot
			c.xinputSlots[slot].InstanceID = instanceID
			c.xinputSlots[slot].DevicePath = info.Path
			c.xinputSlots[slot].ProductName = info.ProductStr
			c.xinputSlots[slot].SlotID = slot
			return
		}
	}
}

func (c *Capture) refreshHIDCandidate(info *hid.DeviceInfo, instanceID string) {
	if existing, ok := c.hidSlots[instanceID]; ok {
		existing.DevicePath = info.Path
		existing.ProductName = info.ProductStr
		c.hidSlots[instanceID] = existing
		return
	}

	hd, err := openHIDDevice(info)
	if err != nil || hd == nil {
		// Enumeration-transient (failed open) or not a gamepad usage; skip.
		return
	}

	c.hidDevices[instanceID] = hd
	c.hidSlots[instanceID] = PhysicalSnapshot{
		SlotID:      HIDSlotID,
		InstanceID:  instanceID,
		DevicePath:  info.Path,
		ProductName: info.ProductStr,
	}
	c.hidOrder = append(c.hidOrder, instanceID)

	if c.cache != nil {
		fp := profilecache.Fingerprint{
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			UsagePage: info.UsagePage,
			Usage:     info.Usage,
		}
		if _, ok := c.cache.Get(fp); !ok {
			c.cache.Put(profilecache.Entry{Fingerprint: fp, ReportLength: hidInputBufferSize, FeatureMode: false})
		}
	}
}

// Update implements spec.md §4.2's polling contract for both stacks.
func (c *Capture) Update(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for slot := 0; slot < MaxXInputSlots; slot++ {
		if c.xinputInstance[slot] == "" {
			c.xinputSlots[slot].Connected = false
			continue
		}
		report, ok, err := xinputGetState(slot)
		if ok {
			c.xinputSlots[slot].RawXInput = report
			c.xinputSlots[slot].HasXInput = true
			c.xinputSlots[slot].Connected = true
			c.xinputSlots[slot].Timestamp = now
			c.xinputSlots[slot].LastError = nil
			continue
		}
		if isDeviceNotConnected(err) {
			c.xinputInstance[slot] = ""
			c.xinputSlots[slot] = PhysicalSnapshot{SlotID: slot}
			continue
		}
		// Poll-transient: retain last-known state, don't flip connected.
		c.xinputSlots[slot].LastError = err
	}

	for _, instanceID := range c.hidOrder {
		hd := c.hidDevices[instanceID]
		snap := c.hidSlots[instanceID]
		if hd == nil {
			continue
		}
		report, ok, err := pollHIDDevice(hd)
		if ok {
			snap.RawHID = report
			snap.HasHID = true
			snap.Connected = true
			snap.Timestamp = now
			snap.LastError = nil
		} else if err != nil {
			snap.LastError = err
		} else if !hd.handle.Outstanding() {
			// The reader goroutine died: treat as device-disconnected.
			snap.Connected = false
			closeHIDDevice(hd)
			delete(c.hidDevices, instanceID)
		}
		c.hidSlots[instanceID] = snap
	}

	c.pruneDisconnectedHID()
}

// pruneDisconnectedHID drops HID slots whose handle has been closed and
// which have stayed disconnected, so a future RefreshDevices can rediscover
// the same physical device under a clean slot. Connected slots and slots
// still holding a live handle are left alone.
func (c *Capture) pruneDisconnectedHID() {
	for id, snap := range c.hidSlots {
		if !snap.Connected && c.hidDevices[id] == nil {
			delete(c.hidSlots, id)
			c.removeFromOrder(id)
		}
	}
}

func (c *Capture) removeFromOrder(instanceID string) {
	for i, id := range c.hidOrder {
		if id == instanceID {
			c.hidOrder = append(c.hidOrder[:i], c.hidOrder[i+1:]...)
			return
		}
	}
}

// Get returns the current snapshot vector: every XInput slot followed by
// every HID slot in discovery order. out is a caller-owned scratch buffer
// (spec.md §9: avoid per-tick dynamic allocation); pass the same backing
// slice every tick (nil on first call) and use the returned slice.
func (c *Capture) Get(out []PhysicalSnapshot) []PhysicalSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out = out[:0]
	out = append(out, c.xinputSlots[:]...)
	for _, id := range c.hidOrder {
		out = append(out, c.hidSlots[id])
	}
	return out
}

// SetVibration forwards to the XInput stack's vibration API for XInput-
// stack slots. HID-stack vibration is not supported in this core.
func (c *Capture) SetVibration(slotID int, leftMotor, rightMotor float64) error {
	if slotID < 0 || slotID >= MaxXInputSlots {
		return fmt.Errorf("capture: slot %d has no vibration support", slotID)
	}
	return xinputSetState(slotID, leftMotor, rightMotor)
}

// LastError returns the most recent enumeration-level error, if any.
func (c *Capture) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Shutdown closes every open HID handle. It does not own a polling thread
// to join (see spec.md §5); it only releases resources.
func (c *Capture) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hd := range c.hidDevices {
		closeHIDDevice(hd)
	}
	c.hidDevices = map[string]*hidDevice{}
}
