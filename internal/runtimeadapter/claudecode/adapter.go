// Package claudecode implements runtimeadapter.Adapter for Claude Code.
package claudecode

import (
	"strings"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
	"agentmux/internal/terminal"
)

func init() {
	runtimeadapter.Register(agentmodel.RuntimeClaudeCode, New)
}

// Adapter implements runtimeadapter.Adapter and runtimeadapter.ResumeCapable
// for Claude Code.
type Adapter struct {
	helper   *sessioncmd.Helper
	template string
	cache    *runtimeadapter.DetectionCache
}

// New constructs a Claude Code Adapter.
func New(cfg runtimeadapter.Config) runtimeadapter.Adapter {
	return &Adapter{
		helper:   cfg.Helper,
		template: cfg.LaunchCommandTemplate,
		cache:    runtimeadapter.NewDetectionCache(cfg.DetectionTTL),
	}
}

func (a *Adapter) RuntimeType() agentmodel.RuntimeType { return agentmodel.RuntimeClaudeCode }

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
	// Claude Code's slash-command menu surfaces "/resume" among the
	// suggestions; its absence means the runtime isn't actually running.
	result := strings.Contains(pane, "/resume") || strings.Contains(pane, "/clear")
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

// PostInitialize is a no-op: Claude Code needs no post-launch hooks.
func (a *Adapter) PostInitialize(session string) error { return nil }

func (a *Adapter) Quirks() runtimeadapter.Quirks {
	return runtimeadapter.Quirks{}
}

// Resume sends "/resume" followed by Enter to select the most recent
// session.
func (a *Adapter) Resume(session string) error {
	if err := a.helper.SendMessage(session, "/resume"); err != nil {
		return err
	}
	return a.helper.SendEnter(session)
}

var _ runtimeadapter.ResumeCapable = (*Adapter)(nil)
