package geminicli

import (
	"testing"
	"time"

	"agentmux/internal/ptybackend"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
)

type fakeBackend struct {
	panes []string // successive CapturePane results, last one repeats
	idx   int
	keys  []string
}

func (f *fakeBackend) Write(name string, data []byte) error { return nil }
func (f *fakeBackend) SendKey(name, symbolic string) error {
	f.keys = append(f.keys, symbolic)
	return nil
}
func (f *fakeBackend) CapturePane(name string, lines int) (string, error) {
	if len(f.panes) == 0 {
		return "", nil
	}
	p := f.panes[f.idx]
	if f.idx < len(f.panes)-1 {
		f.idx++
	}
	return p, nil
}
func (f *fakeBackend) KillSession(name string) error { return nil }
func (f *fakeBackend) OnData(name string, cb ptybackend.DataCallback) (func(), error) {
	return func() {}, nil
}

func withNoSleep(t *testing.T) {
	t.Helper()
	orig := sessioncmd.Sleep
	sessioncmd.Sleep = func(time.Duration) {}
	t.Cleanup(func() { sessioncmd.Sleep = orig })
}

func TestQuirks_GeminiTUIBehaviors(t *testing.T) {
	a := New(runtimeadapter.Config{Helper: sessioncmd.New(&fakeBackend{})}).(*Adapter)
	q := a.Quirks()
	if !q.EscapeDefocusesInput || !q.CtrlCQuitsOnEmptyPrompt || !q.CtrlUIgnored || !q.PromptVisibleDuringProcessing {
		t.Fatalf("expected all gemini quirks set, got %+v", q)
	}
}

func TestRecoverFromShellMode_SucceedsWithinAttempts(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{panes: []string{"! ", "! ", "❯ "}}
	a := New(runtimeadapter.Config{Helper: sessioncmd.New(fb)}).(*Adapter)
	if !a.RecoverFromShellMode("s1", 5) {
		t.Fatal("expected recovery to succeed")
	}
}

func TestRecoverFromShellMode_FailsAfterMaxAttempts(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{panes: []string{"! "}}
	a := New(runtimeadapter.Config{Helper: sessioncmd.New(fb)}).(*Adapter)
	if a.RecoverFromShellMode("s1", 2) {
		t.Fatal("expected recovery to fail when shell-mode persists")
	}
}

func TestPostInitialize_SendsWorkspaceAllowlist(t *testing.T) {
	withNoSleep(t)
	fb := &fakeBackend{}
	a := New(runtimeadapter.Config{Helper: sessioncmd.New(fb)}).(*Adapter)
	if err := a.PostInitialize("s1"); err != nil {
		t.Fatalf("PostInitialize: %v", err)
	}
}

func TestDetectRuntime_TrueWhenMenuPresent(t *testing.T) {
	fb := &fakeBackend{panes: []string{"/about\n/tools\n/memory\n"}}
	a := New(runtimeadapter.Config{Helper: sessioncmd.New(fb), DetectionTTL: time.Second}).(*Adapter)
	if !a.DetectRuntime("s1", false) {
		t.Fatal("expected DetectRuntime true when gemini menu present")
	}
}
