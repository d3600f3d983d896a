package translate

// SOCDMethod is the configured policy for resolving simultaneous opposing
// cardinal directions on the d-pad bits. LastWin and FirstWin are defined
// identically to Neutral in this core — see spec.md §4.3 and §9: true
// last/first-input semantics would need per-bit edge-time tracking keyed by
// slot_id, which this core does not carry.
type SOCDMethod int

const (
	SOCDLastWin SOCDMethod = iota
	SOCDFirstWin
	SOCDNeutral
)

// ResolveSOCD clears both bits of any opposing d-pad pair that are set
// together, independently on each axis. Applying it twice is idempotent.
func ResolveSOCD(buttons uint16, _ SOCDMethod) uint16 {
	if buttons&ButtonDPadLeft != 0 && buttons&ButtonDPadRight != 0 {
		buttons &^= ButtonDPadLeft | ButtonDPadRight
	}
	if buttons&ButtonDPadUp != 0 && buttons&ButtonDPadDown != 0 {
		buttons &^= ButtonDPadUp | ButtonDPadDown
	}
	return buttons
}
