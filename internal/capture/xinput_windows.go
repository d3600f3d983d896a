//go:build windows

package capture

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// xinputDLL binds XInputGetState/XInputSetState the way the retrieval
// pack's own XInput bindings do: a lazily-loaded system DLL plus NewProc,
// no cgo.
var (
	xinputDLL          = windows.NewLazySystemDLL("xinput1_4.dll")
	procXInputGetState = xinputDLL.NewProc("XInputGetState")
	procXInputSetState = xinputDLL.NewProc("XInputSetState")
)

const (
	errSuccess             = 0
	errDeviceNotConnected  = 1167
)

type xinputGamepad struct {
	wButtons      uint16
	bLeftTrigger  byte
	bRightTrigger byte
	sThumbLX      int16
	sThumbLY      int16
	sThumbRX      int16
	sThumbRY      int16
}

type xinputState struct {
	dwPacketNumber uint32
	gamepad        xinputGamepad
}

type xinputVibration struct {
	wLeftMotorSpeed  uint16
	wRightMotorSpeed uint16
}

// xinputGetState queries one XInput slot. ok is true only on success. On
// failure err is errDeviceNotConnectedErr for the stack's "device not
// connected" reply (see isDeviceNotConnected) and an *xinputError carrying
// the return code for any other failure.
func xinputGetState(slot int) (XInputReport, bool, error) {
	var raw xinputState
	ret, _, _ := procXInputGetState.Call(uintptr(slot), uintptr(unsafe.Pointer(&raw)))
	switch ret {
	case errSuccess:
		return XInputReport{
			PacketCounter: raw.dwPacketNumber,
			Buttons:       raw.gamepad.wButtons,
			LeftTrigger:   raw.gamepad.bLeftTrigger,
			RightTrigger:  raw.gamepad.bRightTrigger,
			ThumbLX:       raw.gamepad.sThumbLX,
			ThumbLY:       raw.gamepad.sThumbLY,
			ThumbRX:       raw.gamepad.sThumbRX,
			ThumbRY:       raw.gamepad.sThumbRY,
		}, true, nil
	case errDeviceNotConnected:
		return XInputReport{}, false, errDeviceNotConnectedErr
	default:
		return XInputReport{}, false, &xinputError{code: uint32(ret)}
	}
}

// xinputSetState forwards left/right to full-scale 16-bit motor speeds.
func xinputSetState(slot int, left, right float64) error {
	v := xinputVibration{
		wLeftMotorSpeed:  scaleMotor(left),
		wRightMotorSpeed: scaleMotor(right),
	}
	ret, _, _ := procXInputSetState.Call(uintptr(slot), uintptr(unsafe.Pointer(&v)))
	if ret != errSuccess {
		return &xinputError{code: uint32(ret)}
	}
	return nil
}

func scaleMotor(v float64) uint16 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint16(v * 65535)
}

type xinputError struct {
	code uint32
}

func (e *xinputError) Error() string {
	return "xinput: error code " + itoa(e.code)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

var errDeviceNotConnectedErr = &xinputError{code: errDeviceNotConnected}

// isDeviceNotConnected reports whether err is the authoritative
// "not connected" signal from the XInput stack, per spec.md §4.2.
func isDeviceNotConnected(err error) bool {
	xe, ok := err.(*xinputError)
	return ok && xe.code == errDeviceNotConnected
}
