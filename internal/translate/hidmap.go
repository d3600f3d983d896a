package translate

// HID usage codes referenced by the generic fallback and profile tables
// (Generic Desktop page, 0x01).
const (
	UsageX  uint16 = 0x30
	UsageY  uint16 = 0x31
	UsageZ  uint16 = 0x32
	UsageRx uint16 = 0x33
	UsageRy uint16 = 0x34
	UsageRz uint16 = 0x35
)

// AxisCaps carries the declared logical range for one axis usage, captured
// at parse time from the device's HID report descriptor.
type AxisCaps struct {
	Min, Max int32
}

// HIDReport is the pure-function output of parsing one physical device's
// raw report bytes against its preparsed report descriptor: which button
// usages are currently active, and the raw value of each value usage.
type HIDReport struct {
	ActiveButtons map[uint16]bool
	AxisValues    map[uint16]int32
	AxisCaps      map[uint16]AxisCaps
}

// ButtonProfile maps a device's button usage numbers to canonical button
// bits, and optionally supplies a device-specific axis handler for
// well-known (DualShock-class) controllers.
type ButtonProfile struct {
	ButtonMap map[uint16]uint16
	AxisFunc  func(report *HIDReport) (lx, ly, rx, ry int16)
}

// DeviceProfileTable maps a product-name string (exact match) to its
// ButtonProfile, per spec.md §3's TranslationConfig device-profile table.
type DeviceProfileTable map[string]ButtonProfile

// DefaultDeviceProfiles seeds the well-known DualShock4-class profile.
func DefaultDeviceProfiles() DeviceProfileTable {
	return DeviceProfileTable{
		"Wireless Controller": {
			ButtonMap: map[uint16]uint16{
				1: ButtonX,
				2: ButtonA,
				3: ButtonB,
				4: ButtonY,
				5: ButtonLShoulder,
				6: ButtonRShoulder,
				9: ButtonBack,
				10: ButtonStart,
				11: ButtonLThumb,
				12: ButtonRThumb,
			},
			AxisFunc: ds4AxisHandler,
		},
	}
}

// ds4AxisHandler maps DualShock4-style 8-bit center-128 axis values to
// signed 16-bit canonical axes, inverting Y so that device 0 (up) becomes
// canonical positive and device 255 (down) becomes canonical negative.
func ds4AxisHandler(r *HIDReport) (lx, ly, rx, ry int16) {
	byteAxis := func(usage uint16, invert bool) int16 {
		v, ok := r.AxisValues[usage]
		if !ok {
			return 0
		}
		centered := int32(v) - 128
		if invert {
			centered = -centered
		}
		scaled := centered * 32767 / 128
		return LongToShort(scaled)
	}
	lx = byteAxis(UsageX, false)
	ly = byteAxis(UsageY, true)
	rx = byteAxis(UsageZ, false)
	ry = byteAxis(UsageRz, true)
	return lx, ly, rx, ry
}

// ApplyProfile produces a canonical buttons word from a matched profile's
// button map. Unmapped active usages are ignored.
func ApplyProfile(profile ButtonProfile, r *HIDReport) uint16 {
	var word uint16
	for usage, bit := range profile.ButtonMap {
		if r.ActiveButtons[usage] {
			word |= bit
		}
	}
	return word
}

// GenericFallbackButtons maps usages 1..4 to A, B, X, Y; every other active
// usage is ignored, per spec.md §4.3.
func GenericFallbackButtons(r *HIDReport) uint16 {
	var word uint16
	if r.ActiveButtons[1] {
		word |= ButtonA
	}
	if r.ActiveButtons[2] {
		word |= ButtonB
	}
	if r.ActiveButtons[3] {
		word |= ButtonX
	}
	if r.ActiveButtons[4] {
		word |= ButtonY
	}
	return word
}

// GenericFallbackAxis normalizes one axis usage using its declared logical
// min/max (not a hardcoded range), per spec.md §4.3. isTrigger selects the
// 0..255 unsigned trigger mapping; otherwise the -32768..32767 stick
// mapping is used with the documented Y/Rz inversion.
func GenericFallbackAxis(usage uint16, raw int32, caps AxisCaps, isTrigger bool) int32 {
	lo, hi := float64(caps.Min), float64(caps.Max)
	r := hi - lo
	if r < 1 {
		r = 1
	}
	v := float64(raw)

	if isTrigger {
		scaled := (v - lo) / r * 255
		return clampI32(int32(scaled), 0, 255)
	}

	c := (hi + lo) / 2
	scaled := (v - c) / (r / 2) * 32767
	if usage == UsageY || usage == UsageRz {
		scaled = -scaled
	}
	return clampI32(int32(scaled), -32768, 32767)
}

// IsTriggerUsage reports whether usage is one of the two trigger axes this
// system recognizes (spec.md §4.3: Rx=0x33, Ry=0x34 in this system).
func IsTriggerUsage(usage uint16) bool {
	return usage == UsageRx || usage == UsageRy
}

// IsStickUsage reports whether usage is one of the four stick axes.
func IsStickUsage(usage uint16) bool {
	switch usage {
	case UsageX, UsageY, UsageZ, UsageRz:
		return true
	default:
		return false
	}
}
