package capture

import (
	"testing"

	"github.com/sstallion/go-hid"
)

func vendorInfo(vid, pid uint16) *hid.DeviceInfo {
	return &hid.DeviceInfo{VendorID: vid, ProductID: pid}
}

func TestXinputBaseID(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"xinput interface 0", `\\?\HID#VID_045E&PID_028E&IG_00#8&1234abcd&0&0000#{4d1e55b2}`, `\\?\HID#VID_045E&PID_028E`},
		{"plain path no suffix", `\\?\HID#VID_045E&PID_028E#1&2&0000`, `\\?\HID#VID_045E&PID_028E#1&2&0000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := xinputBaseID(tt.path); got != tt.want {
				t.Errorf("xinputBaseID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsXInputInterface(t *testing.T) {
	if !isXInputInterface(`\\?\HID#VID_045E&PID_028E&IG_00#1&2&0000`, "") {
		t.Error("expected IG_ marker in path to be detected")
	}
	if isXInputInterface(`\\?\HID#VID_054C&PID_09CC#1&2&0000`, "") {
		t.Error("did not expect a non-IG_ path to be classified as XInput")
	}
}

func TestIsVirtualBusDevice(t *testing.T) {
	// ViGEm-emulated Xbox 360 pad reports itself under Microsoft's VID.
	vigemEmulated := vendorInfo(0x045e, 0x028e)
	if !isVirtualBusDevice(vigemEmulated, false) {
		t.Error("expected ViGEm-vendor-id device to be classified as virtual")
	}
	physical := vendorInfo(0x054c, 0x09cc)
	if isVirtualBusDevice(physical, false) {
		t.Error("did not expect a real DualShock4 VID to be classified as virtual")
	}
}

func TestIsGamepadUsage(t *testing.T) {
	if !isGamepadUsage(desktopUsagePage, 0x05) {
		t.Error("gamepad usage should be accepted")
	}
	if !isGamepadUsage(desktopUsagePage, 0x04) {
		t.Error("joystick usage should be accepted")
	}
	if isGamepadUsage(desktopUsagePage, 0x06) {
		t.Error("keyboard usage should be rejected")
	}
	if isGamepadUsage(buttonUsagePage, 0x05) {
		t.Error("wrong usage page should be rejected even with a gamepad usage number")
	}
}
