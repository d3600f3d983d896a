package translate

// XboxReport is the Xbox-360-style virtual target's wire report: a direct
// field copy of canonical, per spec.md §4.3.
type XboxReport struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

// EncodeXbox performs the 1:1 copy from canonical to the Xbox-style wire
// report.
func EncodeXbox(c CanonicalGamepad) XboxReport {
	return XboxReport{
		Buttons:      c.Buttons,
		LeftTrigger:  c.LTrigger,
		RightTrigger: c.RTrigger,
		ThumbLX:      c.LX,
		ThumbLY:      c.LY,
		ThumbRX:      c.RX,
		ThumbRY:      c.RY,
	}
}

// DS4 button bitfield, matching the DualShock4 HID report layout.
const (
	DS4Square uint32 = 1 << iota
	DS4Cross
	DS4Circle
	DS4Triangle
	DS4L1
	DS4R1
	DS4L2
	DS4R2
	DS4Share
	DS4Options
	DS4L3
	DS4R3
	DS4PS
)

// DS4DPad is the 8-way POV hat enumeration used by the DualShock4 report.
type DS4DPad uint8

const (
	DS4DPadN DS4DPad = iota
	DS4DPadNE
	DS4DPadE
	DS4DPadSE
	DS4DPadS
	DS4DPadSW
	DS4DPadW
	DS4DPadNW
	DS4DPadNone
)

// DS4Report is the DualShock4-style virtual target's wire report.
type DS4Report struct {
	Buttons      uint32
	DPad         DS4DPad
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      uint8
	ThumbLY      uint8
	ThumbRX      uint8
	ThumbRY      uint8
}

// canonicalDPad reads the four canonical d-pad bits into (up, down, left,
// right) booleans.
func canonicalDPad(buttons uint16) (up, down, left, right bool) {
	return buttons&ButtonDPadUp != 0,
		buttons&ButtonDPadDown != 0,
		buttons&ButtonDPadLeft != 0,
		buttons&ButtonDPadRight != 0
}

// dpadToPOV encodes the four cardinal bits into the 8-way POV enumeration.
// SOCD resolution has already cleared opposing pairs by the time this runs,
// so at most one of each axis pair is set.
func dpadToPOV(buttons uint16) DS4DPad {
	up, down, left, right := canonicalDPad(buttons)
	switch {
	case up && right:
		return DS4DPadNE
	case down && right:
		return DS4DPadSE
	case down && left:
		return DS4DPadSW
	case up && left:
		return DS4DPadNW
	case up:
		return DS4DPadN
	case right:
		return DS4DPadE
	case down:
		return DS4DPadS
	case left:
		return DS4DPadW
	default:
		return DS4DPadNone
	}
}

// stickToDS4 remaps a signed 16-bit canonical axis to an unsigned 8-bit DS4
// axis, inverting Y so canonical up maps to a low bThumbY value.
func stickToDS4(v int16, invert bool) uint8 {
	f := NormalizeShort(v)
	if invert {
		f = -f
	}
	u := (f + 1) / 2 * 255
	return uint8(clampI32(int32(u+0.5), 0, 255))
}

// EncodeDS4 re-maps canonical into the DualShock4-style wire report.
func EncodeDS4(c CanonicalGamepad) DS4Report {
	var buttons uint32
	if c.Buttons&ButtonX != 0 {
		buttons |= DS4Square
	}
	if c.Buttons&ButtonA != 0 {
		buttons |= DS4Cross
	}
	if c.Buttons&ButtonB != 0 {
		buttons |= DS4Circle
	}
	if c.Buttons&ButtonY != 0 {
		buttons |= DS4Triangle
	}
	if c.Buttons&ButtonLShoulder != 0 {
		buttons |= DS4L1
	}
	if c.Buttons&ButtonRShoulder != 0 {
		buttons |= DS4R1
	}
	if c.Buttons&ButtonBack != 0 {
		buttons |= DS4Share
	}
	if c.Buttons&ButtonStart != 0 {
		buttons |= DS4Options
	}
	if c.Buttons&ButtonLThumb != 0 {
		buttons |= DS4L3
	}
	if c.Buttons&ButtonRThumb != 0 {
		buttons |= DS4R3
	}
	if c.LTrigger > 0 {
		buttons |= DS4L2
	}
	if c.RTrigger > 0 {
		buttons |= DS4R2
	}

	return DS4Report{
		Buttons:      buttons,
		DPad:         dpadToPOV(c.Buttons),
		LeftTrigger:  c.LTrigger,
		RightTrigger: c.RTrigger,
		ThumbLX:      stickToDS4(c.LX, false),
		ThumbLY:      stickToDS4(c.LY, true),
		ThumbRX:      stickToDS4(c.RX, false),
		ThumbRY:      stickToDS4(c.RY, true),
	}
}
