// Package continuation implements the Continuation / Output Analyzer: it
// consumes a ContinuationEvent from one of three trigger sources,
// classifies the last pane output, and recommends an advisory action. A
// per-(session, task) iteration counter enforces a hard cap on re-prods.
package continuation

import (
	"regexp"
	"sync"
	"time"

	"agentmux/internal/terminal"
)

// Trigger identifies which of the three sources raised a ContinuationEvent.
type Trigger string

const (
	TriggerPTYExit        Trigger = "pty_exit"
	TriggerActivityIdle   Trigger = "activity_idle"
	TriggerHeartbeatStale Trigger = "heartbeat_stale"
	TriggerExplicit       Trigger = "explicit_request"
)

// Event is the input to Analyze.
type Event struct {
	Trigger     Trigger
	SessionName string
	AgentID     string
	ProjectPath string
	Timestamp   time.Time
	Metadata    map[string]string
}

// Conclusion classifies the agent's last observed pane state.
type Conclusion string

const (
	ConclusionTaskComplete  Conclusion = "TASK_COMPLETE"
	ConclusionWaitingInput  Conclusion = "WAITING_INPUT"
	ConclusionStuckOrError  Conclusion = "STUCK_OR_ERROR"
	ConclusionIncomplete    Conclusion = "INCOMPLETE"
	ConclusionMaxIterations Conclusion = "MAX_ITERATIONS"
	ConclusionUnknown       Conclusion = "UNKNOWN"
)

// Action is the advisory recommendation a handler may execute.
type Action string

const (
	ActionInjectPrompt    Action = "inject_prompt"
	ActionAssignNextTask  Action = "assign_next_task"
	ActionNotifyOwner     Action = "notify_owner"
	ActionRetryWithHints  Action = "retry_with_hints"
	ActionPauseAgent      Action = "pause_agent"
	ActionNoAction        Action = "no_action"
)

// Analysis is Analyze's output.
type Analysis struct {
	Conclusion Conclusion
	Confidence float64
	Evidence   []string
	Action     Action
}

var completionRe = regexp.MustCompile(`(?i)\b(task complete|all done|finished implementing|tests pass(ing)?|done[.!])\b`)
var errorRe = regexp.MustCompile(`(?i)\b(error|exception|panic|traceback|failed to|fatal)\b`)

// IterationTracker ensures continuation never issues more than Max actions
// for a given (session, task) pair. Persist, if set, is called after every
// Increment so a crash-restart doesn't silently reset the guard.
type IterationTracker struct {
	mu      sync.Mutex
	counts  map[string]int
	Max     int
	Persist func(session, task string, count int)
}

// NewIterationTracker creates a tracker with the given cap. max<=0 selects 10.
func NewIterationTracker(max int) *IterationTracker {
	if max <= 0 {
		max = 10
	}
	return &IterationTracker{counts: make(map[string]int), Max: max}
}

func key(session, task string) string { return session + "\x00" + task }

// Increment records one more iteration for (session, task) and returns the
// new count.
func (t *IterationTracker) Increment(session, task string) int {
	t.mu.Lock()
	k := key(session, task)
	t.counts[k]++
	n := t.counts[k]
	t.mu.Unlock()
	if t.Persist != nil {
		t.Persist(session, task, n)
	}
	return n
}

// Count returns the current iteration count for (session, task).
func (t *IterationTracker) Count(session, task string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key(session, task)]
}

// Reset clears the counter for (session, task), e.g. once a task completes.
func (t *IterationTracker) Reset(session, task string) {
	t.mu.Lock()
	delete(t.counts, key(session, task))
	t.mu.Unlock()
}

// Restore seeds the in-memory counter from a persisted count, for startup
// recovery.
func (t *IterationTracker) Restore(session, task string, count int) {
	t.mu.Lock()
	t.counts[key(session, task)] = count
	t.mu.Unlock()
}

// Analyzer classifies ContinuationEvents against captured pane output.
type Analyzer struct {
	iterations   *IterationTracker
	idleCycles   int
	pollInterval time.Duration
}

// NewAnalyzer creates an Analyzer. idleCycles<=0 selects 3; pollInterval<=0
// selects 5s.
func NewAnalyzer(iterations *IterationTracker, idleCycles int, pollInterval time.Duration) *Analyzer {
	if idleCycles <= 0 {
		idleCycles = 3
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Analyzer{iterations: iterations, idleCycles: idleCycles, pollInterval: pollInterval}
}

// IdleCycles returns the configured cycle-based idle threshold: the
// activity poller should raise TriggerActivityIdle
// once this many successive capturePane comparisons showed no change.
func (a *Analyzer) IdleCycles() int { return a.idleCycles }

// PollInterval returns the configured interval between activity-poller
// capturePane comparisons.
func (a *Analyzer) PollInterval() time.Duration { return a.pollInterval }

// Analyze classifies event against pane (the agent's last captured output)
// and recommends an action. task identifies the (session, task) pair for
// the iteration cap; pass "" if the caller has no task context.
func (a *Analyzer) Analyze(event Event, pane, task string) Analysis {
	analysis := a.classify(event, pane)

	if a.iterations != nil && task != "" && analysis.Action != ActionNoAction {
		count := a.iterations.Increment(event.SessionName, task)
		if count > a.iterations.Max {
			return Analysis{
				Conclusion: ConclusionMaxIterations,
				Confidence: 1,
				Evidence:   []string{"iteration cap exceeded"},
				Action:     ActionNotifyOwner,
			}
		}
	}
	return analysis
}

func (a *Analyzer) classify(event Event, pane string) Analysis {
	switch event.Trigger {
	case TriggerPTYExit:
		return Analysis{
			Conclusion: ConclusionStuckOrError,
			Confidence: 0.9,
			Evidence:   []string{"pty exited"},
			Action:     ActionNotifyOwner,
		}
	case TriggerHeartbeatStale:
		return Analysis{
			Conclusion: ConclusionStuckOrError,
			Confidence: 0.6,
			Evidence:   []string{"no MCP heartbeat within threshold"},
			Action:     ActionRetryWithHints,
		}
	}

	if completionRe.MatchString(pane) {
		return Analysis{
			Conclusion: ConclusionTaskComplete,
			Confidence: 0.8,
			Evidence:   []string{"completion phrase in pane"},
			Action:     ActionAssignNextTask,
		}
	}
	if errorRe.MatchString(pane) {
		return Analysis{
			Conclusion: ConclusionStuckOrError,
			Confidence: 0.7,
			Evidence:   []string{"error keyword in pane"},
			Action:     ActionRetryWithHints,
		}
	}
	if terminal.IsAtPrompt(pane) {
		return Analysis{
			Conclusion: ConclusionWaitingInput,
			Confidence: 0.75,
			Evidence:   []string{"pane tail is an empty prompt"},
			Action:     ActionInjectPrompt,
		}
	}
	if terminal.HasProcessingIndicator(pane) {
		return Analysis{
			Conclusion: ConclusionIncomplete,
			Confidence: 0.5,
			Evidence:   []string{"processing indicator still present"},
			Action:     ActionNoAction,
		}
	}

	return Analysis{
		Conclusion: ConclusionUnknown,
		Confidence: 0.2,
		Evidence:   []string{"no recognized signal in pane"},
		Action:     ActionPauseAgent,
	}
}
