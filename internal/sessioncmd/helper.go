// Package sessioncmd is the thin, runtime-agnostic keystroke/paste layer on
// top of ptybackend. It knows nothing about Claude Code, Gemini,
// or Codex — just how to get text and keys into a PTY reliably.
package sessioncmd

import (
	"time"

	"agentmux/internal/ptybackend"
)

// backend is the subset of ptybackend.Backend the helper needs. Declared as
// an interface so registration/delivery tests can fake it without spawning
// real PTYs.
type backend interface {
	Write(name string, data []byte) error
	SendKey(name, symbolic string) error
	CapturePane(name string, lines int) (string, error)
	OnData(name string, cb ptybackend.DataCallback) (unsubscribe func(), err error)
	KillSession(name string) error
}

// Timing constants for the two-phase write. Production defaults
// sit at the documented floor/cap; AGENTMUX_FAST_TIMERS does not change
// them, and tests skip the waits by replacing Sleep.
var (
	PayloadDelayFloor = 300 * time.Millisecond
	PayloadDelayCap   = 1500 * time.Millisecond
	// PayloadDelayPerChar is how much additional delay each character of the
	// payload adds, before flooring/capping.
	PayloadDelayPerChar = 5 * time.Millisecond
	KeyProcessingDelay  = 200 * time.Millisecond
	ClearLineDelay      = 100 * time.Millisecond
)

// Sleep is overridable by tests to avoid real waits.
var Sleep = time.Sleep

// Helper wraps a backend with keystroke semantics.
type Helper struct {
	backend backend
}

// New creates a Helper over the given backend.
func New(b backend) *Helper {
	return &Helper{backend: b}
}

// payloadDelay returns the scaled, floored, and capped delay for a payload
// of the given length.
func payloadDelay(payloadLen int) time.Duration {
	d := time.Duration(payloadLen) * PayloadDelayPerChar
	if d < PayloadDelayFloor {
		d = PayloadDelayFloor
	}
	if d > PayloadDelayCap {
		d = PayloadDelayCap
	}
	return d
}

// SendMessage performs the two-phase write: payload, scaled delay, \r,
// fixed key-processing delay.
func (h *Helper) SendMessage(session, text string) error {
	if err := h.backend.Write(session, []byte(text)); err != nil {
		return err
	}
	Sleep(payloadDelay(len(text)))
	if err := h.backend.Write(session, []byte{'\r'}); err != nil {
		return err
	}
	Sleep(KeyProcessingDelay)
	return nil
}

// SendRaw writes text without following it with Enter or a delay — used for
// probes (a bare "/" character) and other cases that don't want the full
// two-phase message semantics.
func (h *Helper) SendRaw(session, text string) error {
	return h.backend.Write(session, []byte(text))
}

// SendEnter sends a bare Enter keystroke.
func (h *Helper) SendEnter(session string) error {
	return h.backend.SendKey(session, "Enter")
}

// SendCtrlC sends Ctrl-C.
func (h *Helper) SendCtrlC(session string) error {
	return h.backend.SendKey(session, "C-c")
}

// SendEscape sends Escape.
func (h *Helper) SendEscape(session string) error {
	return h.backend.SendKey(session, "Escape")
}

// SendKey sends an arbitrary symbolic key.
func (h *Helper) SendKey(session, symbolic string) error {
	return h.backend.SendKey(session, symbolic)
}

// ClearCurrentCommandLine composes Ctrl-C, a delay, Ctrl-U, and a delay.
func (h *Helper) ClearCurrentCommandLine(session string) error {
	if err := h.SendCtrlC(session); err != nil {
		return err
	}
	Sleep(ClearLineDelay)
	if err := h.backend.SendKey(session, "C-u"); err != nil {
		return err
	}
	Sleep(ClearLineDelay)
	return nil
}

// CapturePane proxies to the backend.
func (h *Helper) CapturePane(session string, lines int) (string, error) {
	return h.backend.CapturePane(session, lines)
}

// OnData subscribes cb to the session's raw output stream, proxying to the
// backend. The returned function unsubscribes.
func (h *Helper) OnData(session string, cb ptybackend.DataCallback) (func(), error) {
	return h.backend.OnData(session, cb)
}

// KillSession proxies to the backend.
func (h *Helper) KillSession(session string) error {
	return h.backend.KillSession(session)
}
