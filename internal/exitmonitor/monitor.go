// Package exitmonitor implements the Runtime Exit Monitor: a
// process-wide service that watches PTY-backed sessions for unsolicited
// exit and notifies whichever caller asked to be told, so in-flight
// registration or delivery work can cancel rather than write to a dead
// session. It is constructed once per process and injected.
package exitmonitor

import "sync"

// OnExitDetected is invoked when a monitored session's child process exits.
// The composition root binds this to a callback that calls the Registration
// Engine's CancelPendingRegistration; callers
// that persist session metadata also record exitCode (the child's exit
// status, -1 if unknown) for later resume decisions.
type OnExitDetected func(sessionName, runtimeType, role string, exitCode int)

// Monitor tracks which session names are currently of interest and fires
// OnExitDetected at most once per StartMonitoring call.
type Monitor struct {
	onExit OnExitDetected

	mu       sync.Mutex
	watching map[string]watchEntry
}

type watchEntry struct {
	runtimeType string
	role        string
}

// New creates a Monitor that calls onExit when a watched session exits.
func New(onExit OnExitDetected) *Monitor {
	return &Monitor{onExit: onExit, watching: make(map[string]watchEntry)}
}

// StartMonitoring records interest in session. Idempotent: calling it again
// for the same name just updates the recorded metadata.
func (m *Monitor) StartMonitoring(session, runtimeType, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watching[session] = watchEntry{runtimeType: runtimeType, role: role}
}

// StopMonitoring withdraws interest in session. Idempotent.
func (m *Monitor) StopMonitoring(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watching, session)
}

// IsMonitoring reports whether session currently has interest registered.
func (m *Monitor) IsMonitoring(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watching[session]
	return ok
}

// HandleExit is wired as the ptybackend.Backend's ExitCallback. If session
// has a registered interest, it fires OnExitDetected exactly once and
// withdraws the interest; otherwise it's a no-op (the exit monitor only
// reacts to sessions some caller asked about).
func (m *Monitor) HandleExit(session string, exitCode int, _ error) {
	m.mu.Lock()
	entry, ok := m.watching[session]
	if ok {
		delete(m.watching, session)
	}
	m.mu.Unlock()
	if ok && m.onExit != nil {
		m.onExit(session, entry.runtimeType, entry.role, exitCode)
	}
}
