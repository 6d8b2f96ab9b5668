package sessioncmd

import (
	"testing"
	"time"

	"agentmux/internal/ptybackend"
)

type fakeBackend struct {
	writes  [][]byte
	keys    []string
	killed  []string
	pane    string
	writeFn func(data []byte) error
	dataCb  ptybackend.DataCallback
}

func (f *fakeBackend) Write(name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	if f.writeFn != nil {
		return f.writeFn(data)
	}
	return nil
}

func (f *fakeBackend) SendKey(name, symbolic string) error {
	f.keys = append(f.keys, symbolic)
	return nil
}

func (f *fakeBackend) CapturePane(name string, lines int) (string, error) {
	return f.pane, nil
}

func (f *fakeBackend) OnData(name string, cb ptybackend.DataCallback) (func(), error) {
	f.dataCb = cb
	return func() { f.dataCb = nil }, nil
}

func (f *fakeBackend) KillSession(name string) error {
	f.killed = append(f.killed, name)
	return nil
}

func withNoSleep(t *testing.T) {
	t.Helper()
	orig := Sleep
	Sleep = func(time.Duration) {}
	t.Cleanup(func() { Sleep = orig })
}

func TestSendMessage_TwoPhaseWrite(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{}
	h := New(fb)

	if err := h.SendMessage("s1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(fb.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(fb.writes))
	}
	if string(fb.writes[0]) != "hello" {
		t.Errorf("first write = %q, want payload", fb.writes[0])
	}
	if string(fb.writes[1]) != "\r" {
		t.Errorf("second write = %q, want carriage return", fb.writes[1])
	}
}

func TestPayloadDelay_FloorAndCap(t *testing.T) {
	if got := payloadDelay(0); got != PayloadDelayFloor {
		t.Errorf("empty payload delay = %v, want floor %v", got, PayloadDelayFloor)
	}
	if got := payloadDelay(10000); got != PayloadDelayCap {
		t.Errorf("huge payload delay = %v, want cap %v", got, PayloadDelayCap)
	}
	mid := 100
	got := payloadDelay(mid)
	if got <= PayloadDelayFloor || got >= PayloadDelayCap {
		t.Errorf("mid payload delay = %v, want strictly between floor and cap", got)
	}
}

func TestSendEnter_SendCtrlC_SendEscape(t *testing.T) {
	fb := &fakeBackend{}
	h := New(fb)
	h.SendEnter("s1")
	h.SendCtrlC("s1")
	h.SendEscape("s1")
	want := []string{"Enter", "C-c", "Escape"}
	if len(fb.keys) != len(want) {
		t.Fatalf("got %v, want %v", fb.keys, want)
	}
	for i, k := range want {
		if fb.keys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, fb.keys[i], k)
		}
	}
}

func TestClearCurrentCommandLine_Sequence(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{}
	h := New(fb)
	if err := h.ClearCurrentCommandLine("s1"); err != nil {
		t.Fatalf("ClearCurrentCommandLine: %v", err)
	}
	want := []string{"C-c", "C-u"}
	if len(fb.keys) != len(want) {
		t.Fatalf("got %v, want %v", fb.keys, want)
	}
	for i, k := range want {
		if fb.keys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, fb.keys[i], k)
		}
	}
}

func TestCapturePaneAndKillSession_Proxy(t *testing.T) {
	fb := &fakeBackend{pane: "pane contents"}
	h := New(fb)
	got, err := h.CapturePane("s1", 10)
	if err != nil {
		t.Fatalf("CapturePane: %v", err)
	}
	if got != "pane contents" {
		t.Errorf("CapturePane = %q, want %q", got, "pane contents")
	}
	if err := h.KillSession("s1"); err != nil {
		t.Fatalf("KillSession: %v", err)
	}
	if len(fb.killed) != 1 || fb.killed[0] != "s1" {
		t.Errorf("killed = %v, want [s1]", fb.killed)
	}
}

func TestSendMessage_PropagatesWriteError(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{writeFn: func(data []byte) error {
		return errWriteBoom
	}}
	h := New(fb)
	if err := h.SendMessage("s1", "x"); err == nil {
		t.Fatal("expected error from failed write")
	}
}

var errWriteBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }
