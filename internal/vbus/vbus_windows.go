//go:build windows

package vbus

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"

	"padbridge/internal/translate"
)

// ViGEm error codes, per the retrieval pack's own binding of this client
// library.
const (
	vigemErrorNone                 = 0x20000000
	vigemErrorBusNotFound          = 0xE0000001
	vigemErrorNoFreeSlot           = 0xE0000002
	vigemErrorInvalidTarget        = 0xE0000003
	vigemErrorRemovalFailed        = 0xE0000004
	vigemErrorAlreadyConnected     = 0xE0000005
	vigemErrorTargetUninitialized  = 0xE0000006
	vigemErrorTargetNotPluggedIn   = 0xE0000007
	vigemErrorBusVersionMismatch   = 0xE0000008
	vigemErrorBusAccessFailed      = 0xE0000009
	vigemErrorCallbackRegistered   = 0xE0000010
	vigemErrorCallbackNotFound     = 0xE0000011
	vigemErrorBusAlreadyConnected  = 0xE0000012
	vigemErrorBusInvalidHandle     = 0xE0000013
)

const threadPriorityHighest = 2

var (
	kernel32              = windows.NewLazySystemDLL("kernel32.dll")
	procGetCurrentThread  = kernel32.NewProc("GetCurrentThread")
	procSetThreadPriority = kernel32.NewProc("SetThreadPriority")

	vigemDLL = windows.NewLazyDLL("ViGEmClient.dll")

	procAlloc                    = vigemDLL.NewProc("vigem_alloc")
	procFree                     = vigemDLL.NewProc("vigem_free")
	procConnect                  = vigemDLL.NewProc("vigem_connect")
	procDisconnect               = vigemDLL.NewProc("vigem_disconnect")
	procTargetAdd                = vigemDLL.NewProc("vigem_target_add")
	procTargetFree                = vigemDLL.NewProc("vigem_target_free")
	procTargetRemove             = vigemDLL.NewProc("vigem_target_remove")
	procTargetX360Alloc          = vigemDLL.NewProc("vigem_target_x360_alloc")
	procTargetDS4Alloc           = vigemDLL.NewProc("vigem_target_ds4_alloc")
	procTargetX360RegisterNotify = vigemDLL.NewProc("vigem_target_x360_register_notification")
	procTargetX360UnregNotify    = vigemDLL.NewProc("vigem_target_x360_unregister_notification")
	procTargetX360Update         = vigemDLL.NewProc("vigem_target_x360_update")
	procTargetDS4Update          = vigemDLL.NewProc("vigem_target_ds4_update")
)

type vigemError struct{ code uint32 }

func (e *vigemError) Error() string { return "vigem: error code " + itoa32(e.code) }

func checkVigem(code uintptr) error {
	c := uint32(code)
	if c == vigemErrorNone {
		return nil
	}
	return &vigemError{code: c}
}

func itoa32(v uint32) string {
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

// xusbReport mirrors the ViGEm client's native XUSB_REPORT layout.
type xusbReport struct {
	wButtons      uint16
	bLeftTrigger  uint8
	bRightTrigger uint8
	sThumbLX      int16
	sThumbLY      int16
	sThumbRX      int16
	sThumbRY      int16
}

// ds4Report mirrors the ViGEm client's native DS4_REPORT layout.
type ds4Report struct {
	bThumbLX, bThumbLY uint8
	bThumbRX, bThumbRY uint8
	wButtons           uint16
	bSpecial           uint8
	bTriggerL          uint8
	bTriggerR          uint8
}

type vigemDriverImpl struct{}

func defaultDriver() driver { return vigemDriverImpl{} }

// elevateCurrentThreadPriority raises the calling OS thread to
// THREAD_PRIORITY_HIGHEST, matching the original submit thread's priority
// (spec.md §4.4). Must be called after runtime.LockOSThread(), since Go
// scheduling would otherwise migrate the goroutine off the elevated thread.
func elevateCurrentThreadPriority() {
	h, _, _ := procGetCurrentThread.Call()
	procSetThreadPriority.Call(h, uintptr(threadPriorityHighest))
}

func (vigemDriverImpl) alloc() (uintptr, error) {
	h, _, _ := procAlloc.Call()
	if h == 0 {
		return 0, errors.New("vigem: alloc returned null handle")
	}
	return h, nil
}

func (vigemDriverImpl) free(bus uintptr) {
	procFree.Call(bus)
}

func (vigemDriverImpl) connect(bus uintptr) error {
	ret, _, _ := procConnect.Call(bus)
	return checkVigem(ret)
}

func (vigemDriverImpl) disconnect(bus uintptr) {
	procDisconnect.Call(bus)
}

func (vigemDriverImpl) targetAllocX360() uintptr {
	h, _, _ := procTargetX360Alloc.Call()
	return h
}

func (vigemDriverImpl) targetAllocDS4() uintptr {
	h, _, _ := procTargetDS4Alloc.Call()
	return h
}

func (vigemDriverImpl) targetFree(target uintptr) {
	procTargetFree.Call(target)
}

func (vigemDriverImpl) targetAdd(bus, target uintptr) error {
	ret, _, _ := procTargetAdd.Call(bus, target)
	return checkVigem(ret)
}

func (vigemDriverImpl) targetRemove(bus, target uintptr) error {
	ret, _, _ := procTargetRemove.Call(bus, target)
	return checkVigem(ret)
}

// registerX360Notification wraps cb in a windows.NewCallback trampoline.
// The trampoline is kept alive for the process lifetime (ViGEm's contract
// requires the callback pointer to remain valid for as long as the target
// is registered, which in this core means until process exit or
// DestroyTarget — whichever comes first — and the driver never calls it
// after unregistering).
func (vigemDriverImpl) registerX360Notification(bus, target uintptr, cb func(largeMotor, smallMotor byte)) error {
	trampoline := func(clientHandle, targetHandle uintptr, largeMotor, smallMotor, ledNumber byte, userData uintptr) uintptr {
		cb(largeMotor, smallMotor)
		return 0
	}
	callback := windows.NewCallback(trampoline)
	ret, _, _ := procTargetX360RegisterNotify.Call(bus, target, callback)
	return checkVigem(ret)
}

func (vigemDriverImpl) unregisterX360Notification(target uintptr) error {
	ret, _, _ := procTargetX360UnregNotify.Call(target)
	return checkVigem(ret)
}

func (vigemDriverImpl) updateX360(bus, target uintptr, r translate.XboxReport) error {
	native := xusbReport{
		wButtons:      r.Buttons,
		bLeftTrigger:  r.LeftTrigger,
		bRightTrigger: r.RightTrigger,
		sThumbLX:      r.ThumbLX,
		sThumbLY:      r.ThumbLY,
		sThumbRX:      r.ThumbRX,
		sThumbRY:      r.ThumbRY,
	}
	ret, _, _ := procTargetX360Update.Call(bus, target, uintptr(unsafe.Pointer(&native)))
	return checkVigem(ret)
}

// updateDS4 packs the wire report into the native DS4_REPORT bitfield
// layout: low nibble of wButtons is the d-pad hat, the next 12 bits are
// Square..R3. DS4PS (our bit 12) has no slot in wButtons on real hardware
// and is carried in bSpecial instead.
func (vigemDriverImpl) updateDS4(bus, target uintptr, r translate.DS4Report) error {
	const faceButtonsMask = translate.DS4R3<<1 - 1 // bits 0..11: Square..R3
	wButtons := uint16(r.DPad) & 0x0F
	wButtons |= uint16(r.Buttons&faceButtonsMask) << 4

	var special uint8
	if r.Buttons&translate.DS4PS != 0 {
		special = 1
	}

	native := ds4Report{
		bThumbLX:  r.ThumbLX,
		bThumbLY:  r.ThumbLY,
		bThumbRX:  r.ThumbRX,
		bThumbRY:  r.ThumbRY,
		wButtons:  wButtons,
		bSpecial:  special,
		bTriggerL: r.LeftTrigger,
		bTriggerR: r.RightTrigger,
	}
	ret, _, _ := procTargetDS4Update.Call(bus, target, uintptr(unsafe.Pointer(&native)))
	return checkVigem(ret)
}
