package continuation

import (
	"context"
	"strconv"
	"time"

	"agentmux/internal/terminal"
)

// PaneSource is the slice of the session backend the activity poller needs.
type PaneSource interface {
	SessionExists(name string) bool
	CapturePane(name string, lines int) (string, error)
}

// Handler receives the ContinuationEvents a poller or watchdog raises.
type Handler func(Event)

// pollLines is how much scrollback each activity-poll comparison captures.
const pollLines = 50

// ActivityPoller raises TriggerActivityIdle for one session once a
// configured number of successive pane captures show no change. It fires
// once per idle episode: new output re-arms it. PTY exit is the exit
// monitor's job, so the poller just stops when the session disappears.
type ActivityPoller struct {
	source      PaneSource
	handler     Handler
	session     string
	agentID     string
	projectPath string
	idleCycles  int
	interval    time.Duration

	lastPane  string
	unchanged int
	fired     bool
}

// NewActivityPoller creates a poller for session. idleCycles<=0 selects 3;
// interval<=0 selects 5s, matching Analyzer's defaults.
func NewActivityPoller(source PaneSource, handler Handler, session, agentID, projectPath string, idleCycles int, interval time.Duration) *ActivityPoller {
	if idleCycles <= 0 {
		idleCycles = 3
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ActivityPoller{
		source:      source,
		handler:     handler,
		session:     session,
		agentID:     agentID,
		projectPath: projectPath,
		idleCycles:  idleCycles,
		interval:    interval,
	}
}

// Run polls until ctx is cancelled or the session no longer exists.
func (p *ActivityPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.Tick(time.Now()) {
				return nil
			}
		}
	}
}

// Tick performs one poll cycle. It returns false once the session is gone
// and polling should stop. Exposed so tests (and callers with their own
// scheduling) can drive cycles without real waits.
func (p *ActivityPoller) Tick(now time.Time) bool {
	if !p.source.SessionExists(p.session) {
		return false
	}
	pane, err := p.source.CapturePane(p.session, pollLines)
	if err != nil {
		return true
	}
	pane = terminal.StripAnsi(pane)

	if pane != p.lastPane {
		p.lastPane = pane
		p.unchanged = 0
		p.fired = false
		return true
	}

	p.unchanged++
	if p.unchanged >= p.idleCycles && !p.fired {
		p.fired = true
		p.handler(Event{
			Trigger:     TriggerActivityIdle,
			SessionName: p.session,
			AgentID:     p.agentID,
			ProjectPath: p.projectPath,
			Timestamp:   now,
			Metadata:    map[string]string{"unchanged_cycles": strconv.Itoa(p.unchanged)},
		})
	}
	return true
}
