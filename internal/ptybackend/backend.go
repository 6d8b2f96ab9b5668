// Package ptybackend implements the Session Backend: it spawns
// a shell subprocess connected to a PTY per named session, tracks live
// sessions in an in-memory table, and exposes write/capture/subscribe/kill
// primitives. It owns the OS process; higher layers (runtimeadapter,
// registration, delivery) only ever address sessions by name.
package ptybackend

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// Backend owns the session table keyed by session name.
type Backend struct {
	mu       sync.RWMutex
	sessions map[string]*session
	onExit   ExitCallback
}

// New creates an empty Backend. onExit, if non-nil, is invoked exactly once
// per session on unsolicited child exit (not on an explicit KillSession).
func New(onExit ExitCallback) *Backend {
	return &Backend{
		sessions: make(map[string]*session),
		onExit:   onExit,
	}
}

// CreateOptions configures CreateSession.
type CreateOptions struct {
	Command string
	Args    []string
	Env     map[string]string
	Rows    int
	Cols    int
}

// CreatedSession is the subset of session state callers receive back.
type CreatedSession struct {
	Pid int
	Cwd string
}

// CreateSession spawns command/args in cwd under a PTY and registers it
// under name. Fails with ErrAlreadyExists if name is taken.
func (b *Backend) CreateSession(name, cwd string, opts CreateOptions) (CreatedSession, error) {
	b.mu.Lock()
	if _, exists := b.sessions[name]; exists {
		b.mu.Unlock()
		return CreatedSession{}, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	// Reserve the slot before releasing the lock so two concurrent
	// CreateSession(name, ...) calls can't both pass the existence check.
	b.sessions[name] = nil
	b.mu.Unlock()

	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = cwd
	cmd.Env = mergeEnv(os.Environ(), opts.Env)

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		b.mu.Lock()
		delete(b.sessions, name)
		b.mu.Unlock()
		return CreatedSession{}, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	sess := &session{
		name:        name,
		pid:         cmd.Process.Pid,
		cwd:         cwd,
		cmd:         cmd,
		ptm:         ptm,
		scrollback:  newScrollback(),
		subscribers: make(map[int]DataCallback),
	}

	b.mu.Lock()
	b.sessions[name] = sess
	b.mu.Unlock()

	go sess.pipeOutput(b.handleExit)

	return CreatedSession{Pid: sess.pid, Cwd: cwd}, nil
}

func (b *Backend) handleExit(name string, exitCode int, err error) {
	if b.onExit != nil {
		b.onExit(name, exitCode, err)
	}
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key := kv
		if idx := indexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, overridden := extra[key]; !overridden {
			out = append(out, kv)
		}
	}
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// SessionExists is synchronous and cheap.
func (b *Backend) SessionExists(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sess, ok := b.sessions[name]
	return ok && sess != nil
}

func (b *Backend) get(name string) (*session, error) {
	b.mu.RLock()
	sess, ok := b.sessions[name]
	b.mu.RUnlock()
	if !ok || sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchSession, name)
	}
	return sess, nil
}

// Write enqueues bytes to the child's stdin. It returns once the OS-level
// write is accepted; it does not wait for the child to react.
func (b *Backend) Write(name string, data []byte) error {
	sess, err := b.get(name)
	if err != nil {
		return err
	}
	_, err = sess.write(data)
	return err
}

// SendKey maps a symbolic key name to bytes and writes them.
func (b *Backend) SendKey(name, symbolic string) error {
	bytesToSend, ok := keyBytes[symbolic]
	if !ok {
		return fmt.Errorf("ptybackend: unknown symbolic key %q", symbolic)
	}
	return b.Write(name, bytesToSend)
}

// CapturePane returns the last `lines` lines (default ~200) of scrollback,
// after CR-folding, with ANSI preserved.
func (b *Backend) CapturePane(name string, lines int) (string, error) {
	sess, err := b.get(name)
	if err != nil {
		return "", err
	}
	return sess.scrollback.Capture(lines), nil
}

// OnData subscribes cb to raw output chunks for name. The returned function
// unsubscribes. Each callback registered on a session receives every chunk
// exactly once, even under concurrent subscribe/unsubscribe.
func (b *Backend) OnData(name string, cb DataCallback) (unsubscribe func(), err error) {
	sess, err := b.get(name)
	if err != nil {
		return nil, err
	}
	return sess.subscribe(cb), nil
}

// KillSession sends SIGTERM, escalates to SIGKILL after a grace period, and
// removes the session from the table. It does not invoke the exit callback
// (the caller already knows the session is gone).
func (b *Backend) KillSession(name string) error {
	sess, err := b.get(name)
	if err != nil {
		return err
	}
	sess.kill()
	b.mu.Lock()
	delete(b.sessions, name)
	b.mu.Unlock()
	return nil
}

// SetEnvironmentVariable is advisory: see session.setEnvironmentVariable.
func (b *Backend) SetEnvironmentVariable(name, key, value string) error {
	sess, err := b.get(name)
	if err != nil {
		return err
	}
	return sess.setEnvironmentVariable(key, value)
}
