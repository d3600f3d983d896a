package translate

import "time"

// PhysicalInput is the subset of a capture-layer snapshot the translation
// pipeline needs, decoupled from the capture package to avoid an import
// cycle (capture already imports this package for HIDReport/XInputReport).
type PhysicalInput struct {
	SlotID      int
	Connected   bool
	DevicePath  string
	ProductName string

	RawXInput XInputReport
	HasXInput bool

	RawHID HIDReport
	HasHID bool
}

// TranslationConfig is spec.md §3's TranslationConfig.
type TranslationConfig struct {
	SOCDEnabled bool
	SOCDMethod  SOCDMethod

	DebounceEnabled    bool
	DebounceIntervalMs int

	DeadzoneEnabled bool
	LeftDZ, RightDZ         float64
	LeftAntiDZ, RightAntiDZ float64

	Profiles DeviceProfileTable
}

// TranslatedReport is the translation pipeline's per-slot output: the
// canonical snapshot plus both target encodings, ready for the emulator to
// submit to whichever virtual target is configured for this slot.
type TranslatedReport struct {
	SlotID    int
	Canonical CanonicalGamepad
	Xbox      XboxReport
	DS4       DS4Report
}

// classifySource implements spec.md §4.3's source-classification rule.
// 0 = skip, 1 = XInput source, 2 = HID source.
func classifySource(in PhysicalInput) int {
	if in.RawXInput.PacketCounter > 0 || in.SlotID >= 0 {
		return 1
	}
	if in.DevicePath != "" {
		return 2
	}
	return 0
}

// canonicalFromXInput performs the direct field copy spec.md §4.3 requires
// for an XInput-classified source.
func canonicalFromXInput(r XInputReport) CanonicalGamepad {
	return CanonicalGamepad{
		Buttons:  r.Buttons,
		LTrigger: r.LeftTrigger,
		RTrigger: r.RightTrigger,
		LX:       r.ThumbLX,
		LY:       r.ThumbLY,
		RX:       r.ThumbRX,
		RY:       r.ThumbRY,
	}
}

// canonicalFromHID performs the profile-match-or-generic-fallback path.
func canonicalFromHID(in PhysicalInput, profiles DeviceProfileTable) CanonicalGamepad {
	report := in.RawHID
	if profile, ok := profiles[in.ProductName]; ok {
		c := CanonicalGamepad{Buttons: ApplyProfile(profile, &report)}
		if profile.AxisFunc != nil {
			c.LX, c.LY, c.RX, c.RY = profile.AxisFunc(&report)
		}
		return c
	}

	c := CanonicalGamepad{Buttons: GenericFallbackButtons(&report)}
	for usage, raw := range report.AxisValues {
		caps := report.AxisCaps[usage]
		switch {
		case IsStickUsage(usage):
			v := LongToShort(GenericFallbackAxis(usage, raw, caps, false))
			switch usage {
			case UsageX:
				c.LX = v
			case UsageY:
				c.LY = v
			case UsageZ:
				c.RX = v
			case UsageRz:
				c.RY = v
			}
		case IsTriggerUsage(usage):
			v := uint8(GenericFallbackAxis(usage, raw, caps, true))
			switch usage {
			case UsageRx:
				c.LTrigger = v
			case UsageRy:
				c.RTrigger = v
			}
		}
	}
	return c
}

// Translate implements spec.md §4.3: canonicalize, SOCD-resolve, debounce,
// deadzone-shape, and re-encode every connected, classifiable physical
// input in inputs. ledger carries the debounce state across ticks; pass
// the same *DebounceLedger on every call.
//
// out is a caller-owned scratch buffer (spec.md §9: avoid per-tick dynamic
// allocation). Its contents are discarded; pass the same backing slice
// every tick (nil on first call) and use the returned slice, which reuses
// out's array when it has enough capacity.
func Translate(inputs []PhysicalInput, cfg TranslationConfig, ledger *DebounceLedger, now time.Time, out []TranslatedReport) []TranslatedReport {
	out = out[:0]
	for _, in := range inputs {
		if !in.Connected {
			continue
		}
		var canonical CanonicalGamepad
		switch classifySource(in) {
		case 1:
			canonical = canonicalFromXInput(in.RawXInput)
		case 2:
			canonical = canonicalFromHID(in, cfg.Profiles)
		default:
			continue
		}

		buttons := canonical.Buttons
		if cfg.SOCDEnabled {
			buttons = ResolveSOCD(buttons, cfg.SOCDMethod)
		}
		if cfg.DebounceEnabled {
			buttons = ledger.Apply(in.SlotID, buttons, now, cfg.DebounceIntervalMs)
		}
		canonical.Buttons = buttons

		if cfg.DeadzoneEnabled {
			canonical.LX, canonical.LY = ApplyRadialDeadzone(canonical.LX, canonical.LY, cfg.LeftDZ, cfg.LeftAntiDZ)
			canonical.RX, canonical.RY = ApplyRadialDeadzone(canonical.RX, canonical.RY, cfg.RightDZ, cfg.RightAntiDZ)
		}

		out = append(out, TranslatedReport{
			SlotID:    in.SlotID,
			Canonical: canonical,
			Xbox:      EncodeXbox(canonical),
			DS4:       EncodeDS4(canonical),
		})
	}
	return out
}
