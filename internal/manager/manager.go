// Package manager reconciles physical devices against virtual targets each
// tick: it decides which physicals to mask, mints/retires virtual targets
// on connect/disconnect, and owns the mask negative-cache. See spec.md §4.6.
package manager

import (
	"time"

	"padbridge/internal/capture"
	"padbridge/internal/translate"
)

// filterClient is the subset of *hidhide.Client the manager depends on.
type filterClient interface {
	Connected() bool
	AddToBlacklist(id string) error
	RemoveFromBlacklist(id string) error
	Disconnect()
}

// targetEmulator is the subset of *vbus.Emulator the manager depends on.
type targetEmulator interface {
	CreateTarget(profile translate.Profile, linkedUser int, sourceName string) (uint64, error)
	DestroyTarget(id uint64) error
}

// Directions is the pair of translation directions spec.md §3's
// TranslationConfig carries (`xi→di_enabled`, `di→xi_enabled`).
type Directions struct {
	XIToDI bool
	DIToXI bool
}

// targetKey is the (linked_user, profile) pair spec.md §3 says at most one
// VirtualTarget exists for at a time. linked_user is spec.md's slot_id, so
// every HID-stack physical (slot_id -1) shares one linked_user — see
// DESIGN.md for why this per-pair collision is kept rather than redesigned.
type targetKey struct {
	linkedUser int
	profile    translate.Profile
}

// Manager implements spec.md §4.6.
type Manager struct {
	filter   filterClient
	emulator targetEmulator

	maskingEnabled bool
	hidden         map[string]bool
	failedToHide   map[string]bool
	everHidden     map[string]bool // instance_ids ever successfully masked this session

	virtualTargets map[targetKey]uint64

	pauseUntil map[int]time.Time // linked_user -> earliest time a target may be created

	lastError error
}

// New returns a Manager driving filter and emulator.
func New(filter filterClient, emulator targetEmulator) *Manager {
	return &Manager{
		filter:         filter,
		emulator:       emulator,
		hidden:         map[string]bool{},
		failedToHide:   map[string]bool{},
		everHidden:     map[string]bool{},
		virtualTargets: map[targetKey]uint64{},
		pauseUntil:     map[int]time.Time{},
	}
}

// SetMaskingEnabled toggles the global masking switch (spec.md §4.6 step 1).
func (m *Manager) SetMaskingEnabled(v bool) { m.maskingEnabled = v }

// maskEligible implements spec.md §4.6's mask-eligibility criteria.
func (m *Manager) maskEligible(s capture.PhysicalSnapshot, dirs Directions) bool {
	return m.maskingEnabled && m.filter.Connected() && s.SlotID < 0 && dirs.DIToXI
}

// Process implements spec.md §4.6's per-tick reconciliation over every
// physical in snapshot. now is used to time the post-mask creation pause.
func (m *Manager) Process(snapshot []capture.PhysicalSnapshot, dirs Directions, translationEnabled bool, now time.Time) {
	connectedUsers := map[int]bool{}

	for _, s := range snapshot {
		linkedUser := s.SlotID

		if !s.Connected {
			continue
		}
		connectedUsers[linkedUser] = true

		if m.maskEligible(s, dirs) && s.InstanceID != "" && !m.hidden[s.InstanceID] && !m.failedToHide[s.InstanceID] {
			if err := m.filter.AddToBlacklist(s.InstanceID); err != nil {
				m.failedToHide[s.InstanceID] = true
				m.lastError = err
			} else {
				m.hidden[s.InstanceID] = true
				if !m.everHidden[s.InstanceID] {
					m.everHidden[s.InstanceID] = true
					m.pauseUntil[linkedUser] = now.Add(100 * time.Millisecond)
				}
			}
		}

		if !translationEnabled {
			continue
		}
		if until, ok := m.pauseUntil[linkedUser]; ok && now.Before(until) {
			continue
		}

		if dirs.XIToDI {
			m.ensureTarget(linkedUser, translate.ProfileDS4Style, s.ProductName)
		}
		if dirs.DIToXI {
			m.ensureTarget(linkedUser, translate.ProfileXboxStyle, s.ProductName)
		}
	}

	// Disconnected physicals: destroy every virtual target keyed to a
	// linked_user that no longer appears connected (spec.md §4.6 step 2).
	for key, id := range m.virtualTargets {
		if connectedUsers[key.linkedUser] {
			continue
		}
		if err := m.emulator.DestroyTarget(id); err != nil {
			m.lastError = err
		}
		delete(m.virtualTargets, key)
	}
}

func (m *Manager) ensureTarget(linkedUser int, profile translate.Profile, sourceName string) {
	key := targetKey{linkedUser: linkedUser, profile: profile}
	if _, ok := m.virtualTargets[key]; ok {
		return
	}
	id, err := m.emulator.CreateTarget(profile, linkedUser, sourceName)
	if err != nil {
		m.lastError = err
		return
	}
	m.virtualTargets[key] = id
}

// LastError returns the most recent reconciliation-level failure.
func (m *Manager) LastError() error { return m.lastError }

// Cleanup implements spec.md §4.6's shutdown contract: unmask every entry
// in hidden, disconnect the filter client, destroy every virtual target,
// clear the maps.
func (m *Manager) Cleanup() {
	for instanceID := range m.hidden {
		m.filter.RemoveFromBlacklist(instanceID)
	}
	m.filter.Disconnect()

	for _, id := range m.virtualTargets {
		m.emulator.DestroyTarget(id)
	}

	m.hidden = map[string]bool{}
	m.failedToHide = map[string]bool{}
	m.virtualTargets = map[targetKey]uint64{}
}
