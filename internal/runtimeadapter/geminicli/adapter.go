// Package geminicli implements runtimeadapter.Adapter for Gemini-CLI,
// including its shell-mode recovery quirk.
package geminicli

import (
	"strings"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
	"agentmux/internal/terminal"
)

func init() {
	runtimeadapter.Register(agentmodel.RuntimeGeminiCLI, New)
}

// Adapter implements runtimeadapter.Adapter and runtimeadapter.ShellModeRecoverer.
type Adapter struct {
	helper   *sessioncmd.Helper
	template string
	cache    *runtimeadapter.DetectionCache
}

// New constructs a Gemini-CLI Adapter.
func New(cfg runtimeadapter.Config) runtimeadapter.Adapter {
	return &Adapter{
		helper:   cfg.Helper,
		template: cfg.LaunchCommandTemplate,
		cache:    runtimeadapter.NewDetectionCache(cfg.DetectionTTL),
	}
}

func (a *Adapter) RuntimeType() agentmodel.RuntimeType { return agentmodel.RuntimeGeminiCLI }

func (a *Adapter) ExecuteInitScript(session, cwd string, flags []string) error {
	cmd, err := runtimeadapter.BuildLaunchCommand(a.template, flags)
	if err != nil {
		return err
	}
	return a.helper.SendMessage(session, cmd)
}

func (a *Adapter) DetectRuntime(session string, forceRefresh bool) bool {
	if !forceRefresh {
		if result, fresh := a.cache.Get(session); fresh {
			return result
		}
	}
	if err := a.helper.SendRaw(session, "/"); err != nil {
		a.cache.Set(session, false)
		return false
	}
	pane, err := a.helper.CapturePane(session, 40)
	if err != nil {
		a.cache.Set(session, false)
		return false
	}
	result := strings.Contains(pane, "/about") || strings.Contains(pane, "/tools") || strings.Contains(pane, "/memory")
	// Escape is safe here even though it defocuses input: the slash menu
	// is already open and needs dismissing either way.
	a.helper.SendEscape(session)
	a.cache.Set(session, result)
	return result
}

func (a *Adapter) ClearDetectionCache(session string) {
	a.cache.Clear(session)
}

func (a *Adapter) WaitForRuntimeReady(session string, timeout, interval time.Duration) bool {
	elapsed := time.Duration(0)
	for {
		pane, err := a.helper.CapturePane(session, 20)
		if err == nil && terminal.IsAtPrompt(pane) {
			return true
		}
		if elapsed >= timeout {
			return false
		}
		sessioncmd.Sleep(interval)
		elapsed += interval
	}
}

// PostInitialize sends the workspace allowlist command Gemini-CLI needs
// before it will read files outside its launch directory. Non-fatal: the
// caller logs and continues on error.
func (a *Adapter) PostInitialize(session string) error {
	return a.helper.SendMessage(session, "/workspace add .")
}

func (a *Adapter) Quirks() runtimeadapter.Quirks {
	return runtimeadapter.Quirks{
		EscapeDefocusesInput:          true,
		CtrlCQuitsOnEmptyPrompt:       true,
		CtrlUIgnored:                  true,
		PromptVisibleDuringProcessing: true,
	}
}

// RecoverFromShellMode sends Escape up to maxAttempts times, reverifying
// the prompt between attempts, since Gemini-CLI's shell-mode ("!" prompt)
// otherwise routes all input to the host shell instead of the agent.
func (a *Adapter) RecoverFromShellMode(session string, maxAttempts int) bool {
	for i := 0; i < maxAttempts; i++ {
		pane, err := a.helper.CapturePane(session, 20)
		if err == nil && !terminal.IsShellModePrompt(pane) {
			return true
		}
		a.helper.SendEscape(session)
		sessioncmd.Sleep(150 * time.Millisecond)
	}
	pane, err := a.helper.CapturePane(session, 20)
	return err == nil && !terminal.IsShellModePrompt(pane)
}

var _ runtimeadapter.ShellModeRecoverer = (*Adapter)(nil)
