package worker

import (
	"encoding/json"
	"io"
	"testing"
	"time"
)

// newLoopbackClient wires a Client's decoder to a pipe a test can write
// fake helper responses into, without spawning the real -hid-worker
// subprocess (which needs real HID hardware to do anything useful).
func newLoopbackClient(t *testing.T) (*Client, *json.Encoder) {
	t.Helper()
	r, w := io.Pipe()
	c := NewClient()
	c.dec = json.NewDecoder(r)
	c.running = true
	go c.readLoop()
	return c, json.NewEncoder(w)
}

func TestProfileCorrelatesResponseByID(t *testing.T) {
	c, fakeHelper := newLoopbackClient(t)

	c.pendingMu.Lock()
	ch := make(chan map[string]any, 1)
	c.pending[0] = ch
	c.pendingMu.Unlock()

	go fakeHelper.Encode(map[string]any{
		"id":            float64(0),
		"ok":            true,
		"descriptorHex": "0501",
		"samplesHex":    []any{"00ff00ff"},
	})

	select {
	case resp := <-ch:
		if ok, _ := resp["ok"].(bool); !ok {
			t.Fatalf("resp[ok] = %v, want true", resp["ok"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated response")
	}
}

func TestProfileReportsHelperError(t *testing.T) {
	c, fakeHelper := newLoopbackClient(t)

	c.pendingMu.Lock()
	ch := make(chan map[string]any, 1)
	c.pending[1] = ch
	c.pendingMu.Unlock()

	go fakeHelper.Encode(map[string]any{"id": float64(1), "ok": false, "error": "open failed"})

	select {
	case resp := <-ch:
		if ok, _ := resp["ok"].(bool); ok {
			t.Fatal("expected ok=false")
		}
		if resp["error"] != "open failed" {
			t.Fatalf("resp[error] = %v, want %q", resp["error"], "open failed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated response")
	}
}
