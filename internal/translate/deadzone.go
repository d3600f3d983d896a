package translate

import "math"

// ApplyRadialDeadzone implements the radial scaled deadzone / anti-deadzone
// shaping from spec.md §4.3, operating in normalized (-1..1) space and
// returning signed 16-bit stick output. dz and antiDz are both in [0, 1].
func ApplyRadialDeadzone(x, y int16, dz, antiDz float64) (int16, int16) {
	nx := float64(x) / 32767
	ny := float64(y) / 32767

	m := math.Hypot(nx, ny)
	if m < dz {
		return 0, 0
	}
	if m == 0 {
		return 0, 0
	}

	normalizedM := (m - dz) / (1 - dz)
	if normalizedM > 1 {
		normalizedM = 1
	}
	if antiDz > 0 && normalizedM > 0 {
		normalizedM = antiDz + (1-antiDz)*normalizedM
	}

	scale := normalizedM / m
	outX := nx * scale * 32767
	outY := ny * scale * 32767
	return roundToInt16(outX), roundToInt16(outY)
}

func roundToInt16(v float64) int16 {
	r := math.Round(v)
	if r > 32767 {
		r = 32767
	}
	if r < -32768 {
		r = -32768
	}
	return int16(r)
}
