//go:build windows
// +build windows

package hidhide

import (
	"errors"
	"testing"
)

type fakeHandle struct {
	blacklist []string
	whitelist []string
	active    bool
	inverse   bool
	failNext  bool
}

func (f *fakeHandle) ioctl(code uint32, in []byte, outSize int) ([]byte, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("fake: ioctl failed")
	}
	switch code {
	case IOCTLVariantV1.getBlacklist:
		return encodeMultiString(f.blacklist), nil
	case IOCTLVariantV1.setBlacklist:
		f.blacklist = decodeMultiString(in)
		return nil, nil
	case IOCTLVariantV1.getWhitelist:
		return encodeMultiString(f.whitelist), nil
	case IOCTLVariantV1.setWhitelist:
		f.whitelist = decodeMultiString(in)
		return nil, nil
	case IOCTLVariantV1.getActive:
		buf := make([]byte, 4)
		if f.active {
			putU32(buf, 1)
		}
		return buf, nil
	case IOCTLVariantV1.setActive:
		f.active = getU32(in) != 0
		return nil, nil
	case IOCTLVariantV1.getInverse:
		buf := make([]byte, 4)
		if f.inverse {
			putU32(buf, 1)
		}
		return buf, nil
	case IOCTLVariantV1.setInverse:
		f.inverse = getU32(in) != 0
		return nil, nil
	}
	return nil, errors.New("fake: unknown ioctl")
}

func (f *fakeHandle) close() {}

func newConnectedClient(fh *fakeHandle) *Client {
	c := New(IOCTLVariantV1)
	c.h = fh
	c.connected = true
	return c
}

func TestMultiStringRoundTrip(t *testing.T) {
	items := []string{`\\?\HID#VID_054C&PID_09CC#1&2&0000`, "C:\\Program Files\\App\\app.exe", ""}
	encoded := encodeMultiString(items)
	decoded := decodeMultiString(encoded)
	if len(decoded) != len(items) {
		t.Fatalf("decoded %d items, want %d", len(decoded), len(items))
	}
	for i := range items {
		if decoded[i] != items[i] {
			t.Errorf("item %d = %q, want %q", i, decoded[i], items[i])
		}
	}
}

func TestAddToBlacklistIsIdempotent(t *testing.T) {
	fh := &fakeHandle{}
	c := newConnectedClient(fh)

	if err := c.AddToBlacklist("devA"); err != nil {
		t.Fatalf("AddToBlacklist: %v", err)
	}
	if err := c.AddToBlacklist("devA"); err != nil {
		t.Fatalf("AddToBlacklist (second): %v", err)
	}
	list, _ := c.GetBlacklist()
	if len(list) != 1 || list[0] != "devA" {
		t.Errorf("blacklist = %v, want [devA]", list)
	}
}

func TestAddToBlacklistPreservesOtherEntries(t *testing.T) {
	fh := &fakeHandle{blacklist: []string{"devOwnedByOtherApp"}}
	c := newConnectedClient(fh)

	if err := c.AddToBlacklist("devA"); err != nil {
		t.Fatalf("AddToBlacklist: %v", err)
	}
	list, _ := c.GetBlacklist()
	if len(list) != 2 {
		t.Fatalf("blacklist = %v, want 2 entries", list)
	}
}

func TestRemoveFromBlacklist(t *testing.T) {
	fh := &fakeHandle{blacklist: []string{"devA", "devB"}}
	c := newConnectedClient(fh)

	if err := c.RemoveFromBlacklist("devA"); err != nil {
		t.Fatalf("RemoveFromBlacklist: %v", err)
	}
	list, _ := c.GetBlacklist()
	if len(list) != 1 || list[0] != "devB" {
		t.Errorf("blacklist = %v, want [devB]", list)
	}

	// Removing an absent id is a no-op, not an error.
	if err := c.RemoveFromBlacklist("devZ"); err != nil {
		t.Fatalf("RemoveFromBlacklist (absent): %v", err)
	}
}

func TestActiveAndInverseRoundTrip(t *testing.T) {
	fh := &fakeHandle{}
	c := newConnectedClient(fh)

	if err := c.SetActive(true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := c.GetActive()
	if err != nil || !active {
		t.Errorf("GetActive = (%v, %v), want (true, nil)", active, err)
	}

	if err := c.SetInverse(true); err != nil {
		t.Fatalf("SetInverse: %v", err)
	}
	inverse, err := c.GetInverse()
	if err != nil || !inverse {
		t.Errorf("GetInverse = (%v, %v), want (true, nil)", inverse, err)
	}
}

func TestDisconnectedClientReturnsError(t *testing.T) {
	c := New(IOCTLVariantV1)
	if _, err := c.GetBlacklist(); err == nil {
		t.Error("expected an error from a disconnected client")
	}
}
