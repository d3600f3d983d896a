//go:build windows

package hidhide

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// winHandle implements handle by opening the driver's well-known device
// name and issuing DeviceIoControl against it.
type winHandle struct {
	h windows.Handle
}

// openDriver opens \\.\HidHide. A missing driver surfaces as
// ERROR_FILE_NOT_FOUND, which the caller treats as "hiding unavailable",
// not fatal.
func openDriver() (handle, error) {
	path, err := windows.UTF16PtrFromString(`\\.\HidHide`)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("hidhide: open driver: %w", err)
	}
	return &winHandle{h: h}, nil
}

func (w *winHandle) ioctl(code uint32, in []byte, outSize int) ([]byte, error) {
	var inPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	out := make([]byte, outSize)
	var outPtr *byte
	if outSize > 0 {
		outPtr = &out[0]
	}
	var bytesReturned uint32
	err := windows.DeviceIoControl(
		w.h, code,
		inPtr, uint32(len(in)),
		outPtr, uint32(outSize),
		&bytesReturned, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("hidhide: ioctl 0x%x: %w", code, err)
	}
	return out[:bytesReturned], nil
}

func (w *winHandle) close() {
	windows.CloseHandle(w.h)
}
