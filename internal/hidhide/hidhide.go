//go:build windows
// +build windows

// Package hidhide is a client for the HidHide filter driver's IOCTL
// protocol: hiding chosen HID device instances from every process except
// those named on a whitelist. See spec.md §4.5.
package hidhide

import (
	"fmt"
	"sync"
)

// ioctlSet names one of the documented variants of HidHide's numeric IOCTL
// codes. The exact codes are driver-version-dependent (spec.md §4.5). New
// takes the set to use; IOCTLVariantV1 is the only set defined here.
type ioctlSet struct {
	getWhitelist uint32
	setWhitelist uint32
	getBlacklist uint32
	setBlacklist uint32
	getActive    uint32
	setActive    uint32
	getInverse   uint32
	setInverse   uint32
}

// ctlCode mirrors the platform CTL_CODE(DeviceType, Function, Method,
// Access) macro used to derive HidHide's IOCTL codes.
func ctlCode(deviceType, function, method, access uint32) uint32 {
	return (deviceType << 16) | (access << 14) | (function << 2) | method
}

const (
	fileDeviceUnknown = 0x00000022
	methodBuffered    = 0
	fileAnyAccess     = 0x0000
)

// IOCTLVariantV1 matches the HidHide v1.2+ driver's published function
// codes (0x800..0x807 on FILE_DEVICE_UNKNOWN, FILE_ANY_ACCESS).
var IOCTLVariantV1 = ioctlSet{
	getWhitelist: ctlCode(fileDeviceUnknown, 0x800, methodBuffered, fileAnyAccess),
	setWhitelist: ctlCode(fileDeviceUnknown, 0x801, methodBuffered, fileAnyAccess),
	getBlacklist: ctlCode(fileDeviceUnknown, 0x802, methodBuffered, fileAnyAccess),
	setBlacklist: ctlCode(fileDeviceUnknown, 0x803, methodBuffered, fileAnyAccess),
	getActive:    ctlCode(fileDeviceUnknown, 0x804, methodBuffered, fileAnyAccess),
	setActive:    ctlCode(fileDeviceUnknown, 0x805, methodBuffered, fileAnyAccess),
	getInverse:   ctlCode(fileDeviceUnknown, 0x806, methodBuffered, fileAnyAccess),
	setInverse:   ctlCode(fileDeviceUnknown, 0x807, methodBuffered, fileAnyAccess),
}

// handle is the minimal surface this client needs from the OS: open the
// driver's well-known device and issue IOCTLs against it. Implemented by
// the real binding in hidhide_windows.go.
type handle interface {
	ioctl(code uint32, in []byte, outSize int) ([]byte, error)
	close()
}

// Client implements spec.md §4.5. Absence of the driver is non-fatal: a
// disconnected Client makes every operation a no-op returning an error.
type Client struct {
	mu        sync.Mutex
	codes     ioctlSet
	h         handle
	connected bool
}

// New returns a disconnected Client using the given IOCTL code variant.
func New(codes ioctlSet) *Client {
	return &Client{codes: codes}
}

// Connect opens the driver device. A file-not-found failure leaves the
// client disconnected without returning an error to the caller beyond the
// one returned here; callers should treat any error from Connect as
// "hiding is unavailable this session" rather than fatal.
func (c *Client) Connect() error {
	h, err := openDriver()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.h = h
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Disconnect closes the driver handle. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h != nil {
		c.h.close()
		c.h = nil
	}
	c.connected = false
}

// Connected reports whether the driver handle is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) ioctl(code uint32, in []byte, outSize int) ([]byte, error) {
	c.mu.Lock()
	h, connected := c.h, c.connected
	c.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("hidhide: not connected")
	}
	return h.ioctl(code, in, outSize)
}

// encodeMultiString packs a list of device/process identifiers into
// HidHide's wire format: a uint32 count followed by the concatenated
// null-terminated UTF-16 strings.
func encodeMultiString(items []string) []byte {
	buf := make([]byte, 4)
	putU32(buf, uint32(len(items)))
	for _, s := range items {
		u16 := utf16Encode(s)
		u16 = append(u16, 0)
		for _, c := range u16 {
			buf = append(buf, byte(c), byte(c>>8))
		}
	}
	return buf
}

// decodeMultiString is encodeMultiString's inverse.
func decodeMultiString(buf []byte) []string {
	if len(buf) < 4 {
		return nil
	}
	count := getU32(buf)
	out := make([]string, 0, count)
	pos := 4
	for i := uint32(0); i < count && pos < len(buf); i++ {
		start := pos
		for pos+1 < len(buf) {
			if buf[pos] == 0 && buf[pos+1] == 0 {
				break
			}
			pos += 2
		}
		out = append(out, utf16Decode(buf[start:pos]))
		pos += 2
	}
	return out
}

func putU32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func getU32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func utf16Encode(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r < 0x10000 {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

func utf16Decode(b []byte) string {
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u16 = append(u16, uint16(b[i])|uint16(b[i+1])<<8)
	}
	runes := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := u16[i]
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u16) && u16[i+1] >= 0xDC00 && u16[i+1] <= 0xDFFF {
			hi, lo := r, u16[i+1]
			runes = append(runes, (rune(hi-0xD800)<<10|rune(lo-0xDC00))+0x10000)
			i++
			continue
		}
		runes = append(runes, rune(r))
	}
	return string(runes)
}

const defaultOutBufSize = 64 * 1024

// GetBlacklist returns the driver's current device-instance-id blacklist.
func (c *Client) GetBlacklist() ([]string, error) {
	out, err := c.ioctl(c.codes.getBlacklist, nil, defaultOutBufSize)
	if err != nil {
		return nil, err
	}
	return decodeMultiString(out), nil
}

// SetBlacklist replaces the driver's entire device-instance-id blacklist.
func (c *Client) SetBlacklist(ids []string) error {
	_, err := c.ioctl(c.codes.setBlacklist, encodeMultiString(ids), 0)
	return err
}

// GetWhitelist returns the driver's current process-path whitelist.
func (c *Client) GetWhitelist() ([]string, error) {
	out, err := c.ioctl(c.codes.getWhitelist, nil, defaultOutBufSize)
	if err != nil {
		return nil, err
	}
	return decodeMultiString(out), nil
}

// SetWhitelist replaces the driver's entire process-path whitelist.
func (c *Client) SetWhitelist(paths []string) error {
	_, err := c.ioctl(c.codes.setWhitelist, encodeMultiString(paths), 0)
	return err
}

// GetActive reports whether the driver is currently enforcing its lists.
func (c *Client) GetActive() (bool, error) {
	out, err := c.ioctl(c.codes.getActive, nil, 4)
	if err != nil {
		return false, err
	}
	return len(out) >= 4 && getU32(out) != 0, nil
}

// SetActive enables or disables enforcement.
func (c *Client) SetActive(active bool) error {
	var v uint32
	if active {
		v = 1
	}
	buf := make([]byte, 4)
	putU32(buf, v)
	_, err := c.ioctl(c.codes.setActive, buf, 0)
	return err
}

// GetInverse reports whether inverse (whitelist-only) mode is enabled.
func (c *Client) GetInverse() (bool, error) {
	out, err := c.ioctl(c.codes.getInverse, nil, 4)
	if err != nil {
		return false, err
	}
	return len(out) >= 4 && getU32(out) != 0, nil
}

// SetInverse enables or disables inverse mode.
func (c *Client) SetInverse(inverse bool) error {
	var v uint32
	if inverse {
		v = 1
	}
	buf := make([]byte, 4)
	putU32(buf, v)
	_, err := c.ioctl(c.codes.setInverse, buf, 0)
	return err
}

// AddToBlacklist reads the current blacklist, appends id if absent, and
// writes the full list back, per spec.md §4.5's read-modify-write
// contract. Idempotent.
func (c *Client) AddToBlacklist(id string) error {
	list, err := c.GetBlacklist()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == id {
			return nil
		}
	}
	return c.SetBlacklist(append(list, id))
}

// RemoveFromBlacklist reads the current blacklist, drops id if present, and
// writes the full list back. Idempotent.
func (c *Client) RemoveFromBlacklist(id string) error {
	list, err := c.GetBlacklist()
	if err != nil {
		return err
	}
	out := list[:0]
	found := false
	for _, existing := range list {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		return nil
	}
	return c.SetBlacklist(out)
}
