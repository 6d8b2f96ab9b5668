// Package activitylog is a structured JSONL activity logger keyed by actor
// and session, used to record registration/delivery/event-bus attempts for
// later inspection. One line per event, best-effort (logging failures never
// propagate to callers).
package activitylog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger appends JSON lines to a file. A disabled or Nop Logger discards
// everything without touching the filesystem.
type Logger struct {
	enabled   bool
	actor     string
	sessionID string

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger writing to path. If enabled is false, the file is
// never created and every call becomes a no-op.
func New(enabled bool, path, actor, sessionID string) *Logger {
	l := &Logger{enabled: enabled, actor: actor, sessionID: sessionID}
	if !enabled {
		return l
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.enabled = false
		return l
	}
	l.file = f
	return l
}

// Nop returns a Logger that discards everything; safe to call methods on a
// nil *Logger receiver too, for callers that didn't construct one.
func Nop() *Logger {
	return &Logger{enabled: false}
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

type entry struct {
	Timestamp  string `json:"ts"`
	Actor      string `json:"actor"`
	SessionID  string `json:"session_id"`
	Event      string `json:"event"`
	Step       string `json:"step,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	Verified   *bool  `json:"verified,omitempty"`
	Reason     string `json:"reason,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	Subscriber string `json:"subscriber,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

func (l *Logger) write(e entry) {
	if l == nil || !l.enabled || l.file == nil {
		return
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	e.Actor = l.actor
	e.SessionID = l.sessionID
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Write(data)
}

// RegistrationStep records one step of the two-step escalation,
// e.g. step="stepA-readiness" outcome="ready".
func (l *Logger) RegistrationStep(step, outcome string) {
	l.write(entry{Event: "registration_step", Step: step, Outcome: outcome})
}

// DeliveryAttempt records one attempt of sendMessageWithRetry.
func (l *Logger) DeliveryAttempt(attempt int, verified bool, reason string) {
	v := verified
	l.write(entry{Event: "delivery_attempt", Attempt: attempt, Verified: &v, Reason: reason})
}

// EventDispatched records a successful event-bus delivery.
func (l *Logger) EventDispatched(eventType, subscriberSession string) {
	l.write(entry{Event: "event_dispatched", EventType: eventType, Subscriber: subscriberSession})
}

// StateChange records an AgentStatus transition.
func (l *Logger) StateChange(from, to string) {
	l.write(entry{Event: "state_change", From: from, To: to})
}
