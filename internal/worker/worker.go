// Package worker runs first-contact HID profiling of unknown generic-HID
// gamepads in a child process, so a misbehaving driver during that probe
// cannot take down the router. It reuses the teacher's stdin/stdout
// JSON-RPC framing (worker.go): line-delimited JSON, "id"-correlated
// requests/responses, "ok"/"error" result shape.
package worker

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sstallion/go-hid"
)

// profileTimeout bounds how long the parent waits for one profile RPC.
const profileTimeout = 5 * time.Second

// sampleCount is how many input reports the helper collects per probe.
const sampleCount = 3

// Client manages the "-hid-worker" child process and issues profile
// requests to it.
type Client struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	enc     *json.Encoder
	dec     *json.Decoder
	running bool

	pendingMu sync.Mutex
	pending   map[int]chan map[string]any
	nextID    int
}

// NewClient returns an unstarted client; Start (or the first Profile call)
// launches the helper.
func NewClient() *Client {
	return &Client{pending: map[int]chan map[string]any{}}
}

// Start launches the helper process if it is not already running.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked()
}

func (c *Client) startLocked() error {
	if c.running {
		return nil
	}
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, "-hid-worker")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	c.cmd = cmd
	c.enc = json.NewEncoder(stdin)
	c.dec = json.NewDecoder(stdout)
	c.running = true

	go c.readLoop()
	go func() {
		cmd.Wait()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	}()
	return nil
}

func (c *Client) readLoop() {
	for {
		var msg map[string]any
		if err := c.dec.Decode(&msg); err != nil {
			return
		}
		idv, ok := msg["id"]
		if !ok {
			continue
		}
		idf, ok := idv.(float64)
		if !ok {
			continue
		}
		id := int(idf)
		c.pendingMu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// Profile asks the helper to open path, read its report descriptor, and
// collect a handful of sample input reports.
func (c *Client) Profile(path string) (descriptor []byte, samples [][]byte, err error) {
	c.mu.Lock()
	if !c.running {
		if err := c.startLocked(); err != nil {
			c.mu.Unlock()
			return nil, nil, err
		}
	}
	id := c.nextID
	c.nextID++
	enc := c.enc
	c.mu.Unlock()

	ch := make(chan map[string]any, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := enc.Encode(map[string]any{"id": id, "cmd": "profile", "path": path}); err != nil {
		return nil, nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, nil, fmt.Errorf("worker: helper exited")
		}
		if okv, _ := resp["ok"].(bool); !okv {
			if e, _ := resp["error"].(string); e != "" {
				return nil, nil, fmt.Errorf("worker: %s", e)
			}
			return nil, nil, fmt.Errorf("worker: profile failed")
		}
		descHex, _ := resp["descriptorHex"].(string)
		descriptor, err = hex.DecodeString(descHex)
		if err != nil {
			return nil, nil, err
		}
		rawSamples, _ := resp["samplesHex"].([]any)
		for _, s := range rawSamples {
			sHex, _ := s.(string)
			b, err := hex.DecodeString(sHex)
			if err != nil {
				continue
			}
			samples = append(samples, b)
		}
		return descriptor, samples, nil
	case <-time.After(profileTimeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, nil, fmt.Errorf("worker: profile timeout")
	}
}

// Stop terminates the helper process, if running.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

// Main is the code path executed when the binary is started with
// -hid-worker: it reads JSON commands from stdin and writes JSON responses
// to stdout, one line each.
func Main() {
	hid.Init()
	defer hid.Exit()

	dec := json.NewDecoder(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	var writeMu sync.Mutex

	for {
		var req map[string]any
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return
			}
			continue
		}
		id := req["id"]
		cmd, _ := req["cmd"].(string)
		switch cmd {
		case "profile":
			path, _ := req["path"].(string)
			go func() {
				resp := runProfile(path)
				resp["id"] = id
				writeMu.Lock()
				enc.Encode(resp)
				writeMu.Unlock()
			}()
		default:
			writeMu.Lock()
			enc.Encode(map[string]any{"id": id, "ok": false, "error": "unknown command"})
			writeMu.Unlock()
		}
	}
}

func runProfile(path string) map[string]any {
	dev, err := hid.OpenPath(path)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	defer dev.Close()

	descBuf := make([]byte, 4096)
	descLen, err := dev.GetReportDescriptor(descBuf)
	if err != nil || descLen <= 0 {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	descriptor := descBuf[:descLen]

	samplesHex := make([]string, 0, sampleCount)
	buf := make([]byte, 64)
	for i := 0; i < sampleCount; i++ {
		n, err := dev.ReadWithTimeout(buf, 200*time.Millisecond)
		if err != nil || n == 0 {
			continue
		}
		samplesHex = append(samplesHex, hex.EncodeToString(buf[:n]))
	}

	return map[string]any{
		"ok":            true,
		"descriptorHex": hex.EncodeToString(descriptor),
		"samplesHex":    samplesHex,
	}
}
