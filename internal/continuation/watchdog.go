package continuation

import (
	"context"
	"time"
)

// StaleHeartbeatAfter is how long without an MCP call before a heartbeat is
// considered stale. A var so tests can lower it.
var StaleHeartbeatAfter = 2 * time.Minute

// HeartbeatWatchdog raises TriggerHeartbeatStale for one session when the
// injected last-heartbeat source reports no MCP call within
// StaleHeartbeatAfter. The heartbeat channel itself is external; the
// watchdog only reads "last MCP call at". Like the activity poller it fires
// once per stale episode and re-arms when a fresh heartbeat appears.
type HeartbeatWatchdog struct {
	lastHeartbeat func() time.Time
	handler       Handler
	session       string
	agentID       string
	projectPath   string
	interval      time.Duration

	fired bool
}

// NewHeartbeatWatchdog creates a watchdog for session. lastHeartbeat
// returns the time of the session's most recent MCP registration call (the
// zero time means none yet, which never counts as stale — an agent that has
// not registered is the escalation engine's problem, not the watchdog's).
// interval<=0 selects 30s.
func NewHeartbeatWatchdog(lastHeartbeat func() time.Time, handler Handler, session, agentID, projectPath string, interval time.Duration) *HeartbeatWatchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatWatchdog{
		lastHeartbeat: lastHeartbeat,
		handler:       handler,
		session:       session,
		agentID:       agentID,
		projectPath:   projectPath,
		interval:      interval,
	}
}

// Run checks the heartbeat until ctx is cancelled.
func (w *HeartbeatWatchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(time.Now())
		}
	}
}

// Tick performs one staleness check. Exposed so tests can drive cycles
// without real waits.
func (w *HeartbeatWatchdog) Tick(now time.Time) {
	last := w.lastHeartbeat()
	if last.IsZero() {
		return
	}
	if now.Sub(last) < StaleHeartbeatAfter {
		w.fired = false
		return
	}
	if w.fired {
		return
	}
	w.fired = true
	w.handler(Event{
		Trigger:     TriggerHeartbeatStale,
		SessionName: w.session,
		AgentID:     w.agentID,
		ProjectPath: w.projectPath,
		Timestamp:   now,
		Metadata:    map[string]string{"last_heartbeat": last.Format(time.RFC3339)},
	})
}
