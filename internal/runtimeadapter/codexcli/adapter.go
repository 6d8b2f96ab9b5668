// Package codexcli implements runtimeadapter.Adapter for Codex-CLI.
package codexcli

import (
	"strings"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
	"agentmux/internal/terminal"
)

func init() {
	runtimeadapter.Register(agentmodel.RuntimeCodexCLI, New)
}

// Adapter implements runtimeadapter.Adapter for Codex-CLI.
type Adapter struct {
	helper   *sessioncmd.Helper
	template string
	cache    *runtimeadapter.DetectionCache
}

// New constructs a Codex-CLI Adapter.
func New(cfg runtimeadapter.Config) runtimeadapter.Adapter {
	return &Adapter{
		helper:   cfg.Helper,
		template: cfg.LaunchCommandTemplate,
		cache:    runtimeadapter.NewDetectionCache(cfg.DetectionTTL),
	}
}

func (a *Adapter) RuntimeType() agentmodel.RuntimeType { return agentmodel.RuntimeCodexCLI }

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
	result := strings.Contains(pane, "/diff") || strings.Contains(pane, "/model")
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

// PostInitialize is a no-op: Codex-CLI needs no post-launch hooks.
func (a *Adapter) PostInitialize(session string) error { return nil }

func (a *Adapter) Quirks() runtimeadapter.Quirks {
	return runtimeadapter.Quirks{}
}
