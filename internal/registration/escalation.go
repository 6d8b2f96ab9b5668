package registration

import (
	"fmt"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/ptybackend"
	"agentmux/internal/runtimeadapter"
)

// escalate runs the two-step progressive escalation that
// follows fresh creation; Step B's full recreation happens inside stepB.
// budget is the role's configured registration timeout.
func (e *Engine) escalate(in CreateInput, rt agentmodel.RuntimeType, abort <-chan struct{}) Result {
	start := time.Now()
	budget := e.roleBudget(in.Role)

	adapter, err := e.adapters(rt)
	if err != nil {
		return fail(in.SessionName, err)
	}

	if isAborted(abort) {
		return fail(in.SessionName, ErrAborted)
	}

	if e.stepA(in, rt, adapter, abort) {
		return ok(in.SessionName, "session started")
	}

	remaining := budget - time.Since(start)
	if remaining <= scale(StepBMinRemainingBudget) {
		return fail(in.SessionName, fmt.Errorf("%w: elapsed %.0fs", ErrRegistrationTimedOut, time.Since(start).Seconds()))
	}
	if isAborted(abort) {
		return fail(in.SessionName, ErrAborted)
	}

	if e.stepB(in, rt, adapter, abort) {
		return ok(in.SessionName, "session started (recreated)")
	}

	return fail(in.SessionName, fmt.Errorf("%w: elapsed %.0fs", ErrRegistrationTimedOut, time.Since(start).Seconds()))
}

func (e *Engine) roleBudget(role string) time.Duration {
	fallback := int(RegularRoleBudget / time.Second)
	if role == agentmodel.OrchestratorRole {
		fallback = int(OrchestratorRoleBudget / time.Second)
	}
	seconds := fallback
	if e.cfg != nil {
		seconds = e.cfg.RoleTimeout(role, fallback)
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) initFlags(in CreateInput, rt agentmodel.RuntimeType) []string {
	if e.skills == nil || len(in.EffectiveSkills) == 0 {
		return nil
	}
	return agentmodel.ResolveFlags(e.skills, in.EffectiveSkills, rt)
}

// stepA is the first escalation step: cleanup + reinit on the existing PTY.
func (e *Engine) stepA(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}) bool {
	e.helper.ClearCurrentCommandLine(in.SessionName)
	if isAborted(abort) {
		return false
	}

	if err := adapter.ExecuteInitScript(in.SessionName, in.ProjectPath, e.initFlags(in, rt)); err != nil {
		return false
	}

	if !adapter.WaitForRuntimeReady(in.SessionName, scale(StepAReadinessTimeout), scale(StepAReadinessInterval)) {
		return false
	}
	if isAborted(abort) {
		return false
	}

	e.afterReadiness(in, rt, adapter)
	return true
}

// stepB is the second escalation step: full session recreation.
func (e *Engine) stepB(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}) bool {
	e.backend.KillSession(in.SessionName)
	sleepChecked(scale(StepBRecreateDelay), abort)
	if isAborted(abort) {
		return false
	}

	command := in.Command
	if command == "" {
		command = "bash"
	}
	if _, err := e.backend.CreateSession(in.SessionName, in.ProjectPath, ptybackend.CreateOptions{Command: command}); err != nil {
		return false
	}
	if err := adapter.ExecuteInitScript(in.SessionName, in.ProjectPath, e.initFlags(in, rt)); err != nil {
		return false
	}

	readinessTimeout := StepBReadinessRegular
	if in.Role == agentmodel.OrchestratorRole {
		readinessTimeout = StepBReadinessOrchestrator
	}
	if !adapter.WaitForRuntimeReady(in.SessionName, scale(readinessTimeout), scale(StepAReadinessInterval)) {
		return false
	}
	if isAborted(abort) {
		return false
	}

	if in.Role == agentmodel.OrchestratorRole {
		sleepChecked(scale(StepBOrchestratorExtraDelay), abort)
		if isAborted(abort) {
			return false
		}
		if !adapter.WaitForRuntimeReady(in.SessionName, scale(StepAReadinessTimeout), scale(StepAReadinessInterval)) {
			return false
		}
	}

	e.afterReadiness(in, rt, adapter)
	return true
}

// afterReadiness implements the shared tail of Step A/B once the runtime
// reports ready: start monitoring, post-init, drain, clear (Claude-Code
// only), resume (if applicable), async registration prompt, mark started.
func (e *Engine) afterReadiness(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter) {
	e.monitor.StartMonitoring(in.SessionName, rt.String(), in.Role)

	adapter.PostInitialize(in.SessionName)

	Sleep(scale(PostReadyDrainDelay))

	if rt == agentmodel.RuntimeClaudeCode {
		e.helper.ClearCurrentCommandLine(in.SessionName)
	}

	if rt == agentmodel.RuntimeClaudeCode && e.state != nil && e.state.IsRestoredSession(in.SessionName) {
		e.resumeClaudeCode(in.SessionName, adapter)
	}

	go e.deliverRegistrationPromptAsync(in, rt, adapter)

	e.transitionStatus(in.SessionName, in.TeamID, in.MemberID, agentmodel.StatusStarted)
}
