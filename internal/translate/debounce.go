package translate

import "time"

// debounceLedgerSize is N in spec.md §3's per-user debounce ledger.
const debounceLedgerSize = 16

// DebounceLedger tracks the last-change timestamp and last-accepted button
// word per slot, indexed by sourceUserId. Slots outside [0, N) bypass
// debouncing entirely (no-op pass-through), matching spec.md §4.3.
type DebounceLedger struct {
	lastChange [debounceLedgerSize]time.Time
	lastWord   [debounceLedgerSize]uint16
	seen       [debounceLedgerSize]bool
}

// NewDebounceLedger returns a ready-to-use ledger.
func NewDebounceLedger() *DebounceLedger {
	return &DebounceLedger{}
}

// Apply returns the button word that should be used this tick for the given
// slot: either the new word (if the interval since the last accepted change
// is at least intervalMs) or the previous accepted word otherwise.
func (l *DebounceLedger) Apply(slotID int, word uint16, now time.Time, intervalMs int) uint16 {
	if slotID < 0 || slotID >= debounceLedgerSize {
		return word
	}
	if !l.seen[slotID] {
		l.seen[slotID] = true
		l.lastChange[slotID] = now
		l.lastWord[slotID] = word
		return word
	}
	if word == l.lastWord[slotID] {
		return word
	}
	elapsed := now.Sub(l.lastChange[slotID])
	if elapsed.Milliseconds() < int64(intervalMs) {
		return l.lastWord[slotID]
	}
	l.lastChange[slotID] = now
	l.lastWord[slotID] = word
	return word
}
