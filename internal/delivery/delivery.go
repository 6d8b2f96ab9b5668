// Package delivery implements the Message Delivery Engine: the per-attempt
// state machine that gets a message into a running agent's input despite
// bracketed-paste quirks, a defocused TUI input box, or Gemini-CLI's
// shell-mode passthrough, with stuck-prompt detection as the verification
// signal. One linear attempt loop, explicit verify step, no queueing.
package delivery

import (
	"errors"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
	"agentmux/internal/terminal"
)

// Attempt-loop timing constants. Production defaults; config.FastTimers
// does not change them, and tests skip the waits by replacing Sleep.
var (
	PreClearDelayClaude    = 300 * time.Millisecond
	PreClearDelayTUI       = 500 * time.Millisecond
	ProcessingDelayClaude  = 800 * time.Millisecond
	ProcessingDelayTUI     = 3000 * time.Millisecond
	BetweenAttemptDelay    = 1 * time.Second
	NotAtPromptDelay       = 500 * time.Millisecond
	ShellModeRecoveryDelay = 150 * time.Millisecond
)

// MaxEscapeAttempts bounds the Gemini-CLI shell-mode recovery loop.
var MaxEscapeAttempts = 3

// ErrDeliveryFailed is returned once every attempt is exhausted.
var ErrDeliveryFailed = errors.New("delivery: failed to deliver message after multiple attempts")

// Sleep is overridable by tests.
var Sleep = time.Sleep

// Engine drives sendMessageWithRetry over a sessioncmd.Helper.
type Engine struct {
	helper *sessioncmd.Helper
}

// New creates an Engine over helper.
func New(helper *sessioncmd.Helper) *Engine {
	return &Engine{helper: helper}
}

// Result is one sendMessageWithRetry outcome.
type Result struct {
	Success  bool
	Attempts int
	Err      error
}

// SendMessageWithRetry delivers message with per-attempt verification.
// maxAttempts<=0 selects 3.
// adapter may be nil for Claude-Code (no shell-mode recovery needed);
// for TUI runtimes it should implement runtimeadapter.ShellModeRecoverer
// when the runtime has a shell-mode quirk. abort, if non-nil, is checked at
// the top of every iteration and after every suspension point — closing it
// cancels the delivery in progress without further writes.
func (e *Engine) SendMessageWithRetry(session, message string, maxAttempts int, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}) Result {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	isClaude := rt == agentmodel.RuntimeClaudeCode

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if aborted(abort) {
			return Result{Success: false, Attempts: attempt - 1, Err: ErrAborted}
		}

		pane, err := e.helper.CapturePane(session, 20)
		if err != nil {
			return Result{Success: false, Attempts: attempt, Err: err}
		}
		if !terminal.IsAtPrompt(pane) {
			sleepChecked(NotAtPromptDelay, abort)
			continue
		}

		if !isClaude && e.inShellMode(session, pane, adapter, abort) {
			// Attempt consumed: still in shell mode after recovery.
			continue
		}
		if aborted(abort) {
			return Result{Success: false, Attempts: attempt - 1, Err: ErrAborted}
		}

		e.preClear(session, isClaude, abort)
		if aborted(abort) {
			return Result{Success: false, Attempts: attempt - 1, Err: ErrAborted}
		}

		var before string
		if !isClaude {
			before, _ = e.helper.CapturePane(session, 20)
		}

		if err := e.helper.SendMessage(session, message); err != nil {
			return Result{Success: false, Attempts: attempt, Err: err}
		}

		if isClaude {
			sleepChecked(ProcessingDelayClaude, abort)
		} else {
			sleepChecked(ProcessingDelayTUI, abort)
		}
		if aborted(abort) {
			return Result{Success: false, Attempts: attempt, Err: ErrAborted}
		}

		after, err := e.helper.CapturePane(session, 20)
		if err != nil {
			return Result{Success: false, Attempts: attempt, Err: err}
		}

		delivered := e.verify(isClaude, message, before, after)
		if delivered {
			return Result{Success: true, Attempts: attempt}
		}

		e.recoverFromFailedAttempt(session, isClaude, before, after)
		sleepChecked(BetweenAttemptDelay, abort)
	}

	return Result{Success: false, Attempts: maxAttempts, Err: ErrDeliveryFailed}
}

// ErrAborted is returned when the caller's abort signal fires mid-flight.
var ErrAborted = errors.New("delivery: aborted")

func (e *Engine) inShellMode(session, pane string, adapter runtimeadapter.Adapter, abort <-chan struct{}) bool {
	if !terminal.IsShellModePrompt(pane) {
		return false
	}
	recoverer, ok := adapter.(runtimeadapter.ShellModeRecoverer)
	if !ok {
		return true
	}
	for i := 0; i < MaxEscapeAttempts; i++ {
		if aborted(abort) {
			return true
		}
		if recoverer.RecoverFromShellMode(session, 1) {
			return false
		}
		sleepChecked(ShellModeRecoveryDelay, abort)
	}
	return true
}

func (e *Engine) preClear(session string, isClaude bool, abort <-chan struct{}) {
	if isClaude {
		e.helper.SendCtrlC(session)
		sleepChecked(PreClearDelayClaude, abort)
		return
	}
	// TUI runtimes: Enter is a safe no-op on an empty prompt and may
	// re-focus a defocused input box.
	e.helper.SendEnter(session)
	sleepChecked(PreClearDelayTUI, abort)
}

// verify decides whether the message reached the runtime's input loop.
func (e *Engine) verify(isClaude bool, message, before, after string) bool {
	if isClaude {
		token := terminal.StuckToken(message)
		return !terminal.IsStuck(after, token)
	}
	grewEnough := len(after)-len(before) > 20
	changedSubstantially := after != before && absInt(len(after)-len(before)) > 10
	return grewEnough || changedSubstantially || terminal.HasProcessingIndicator(after) || terminal.HasDeliveryKeyword(after)
}

// recoverFromFailedAttempt returns the terminal to an empty-prompt state,
// best-effort.
func (e *Engine) recoverFromFailedAttempt(session string, isClaude bool, before, after string) {
	if isClaude {
		e.helper.ClearCurrentCommandLine(session)
		return
	}
	if after == before {
		// Content didn't change at all: the TUI input is likely defocused.
		e.helper.SendEnter(session)
		return
	}
	// Input is non-empty (content changed but wasn't verified as
	// delivered): Ctrl-C is safe here.
	e.helper.SendCtrlC(session)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func aborted(abort <-chan struct{}) bool {
	if abort == nil {
		return false
	}
	select {
	case <-abort:
		return true
	default:
		return false
	}
}

func sleepChecked(d time.Duration, abort <-chan struct{}) {
	if aborted(abort) {
		return
	}
	Sleep(d)
}
