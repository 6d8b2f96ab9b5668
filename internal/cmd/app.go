// Package cmd assembles the core packages into the cobra command tree that
// is this repository's operator-facing CLI surface: each file builds one
// newXCmd() *cobra.Command, and root.go wires them onto NewRootCmd().
//
// This is deliberately a thin shell over the registration and delivery
// operations the core packages already implement — it is not an
// HTTP/WebSocket/chat-UI surface, just a local driver so the core is
// runnable.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"agentmux/internal/activitylog"
	"agentmux/internal/agentmodel"
	"agentmux/internal/config"
	"agentmux/internal/continuation"
	"agentmux/internal/delivery"
	"agentmux/internal/eventbus"
	"agentmux/internal/exitmonitor"
	"agentmux/internal/ptybackend"
	"agentmux/internal/registration"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessioncmd"
	"agentmux/internal/sessionstate"
	"agentmux/internal/storage"

	_ "agentmux/internal/runtimeadapter/claudecode"
	_ "agentmux/internal/runtimeadapter/codexcli"
	_ "agentmux/internal/runtimeadapter/geminicli"
)

// app bundles the process-wide services a command needs, constructed once
// per CLI invocation and injected into constructors.
type app struct {
	cfg      *config.Config
	storage  *storage.Service
	state    *sessionstate.Store
	backend  *ptybackend.Backend
	helper   *sessioncmd.Helper
	monitor  *exitmonitor.Monitor
	engine   *registration.Engine
	activity *activitylog.Logger
	events   *eventbus.Bus
	analyzer *continuation.Analyzer
}

// eventSender adapts Engine.SendMessageToAgent (which needs a resolved
// RuntimeType) to eventbus.Sender's two-argument shape, resolving the
// runtime from storage the same way a team member's own messages would be.
// Captures app by pointer so it can be constructed before a.engine exists —
// mirroring the exitmonitor.New callback below, which closes over a.engine
// the same way.
type eventSender struct{ app *app }

func (s eventSender) SendMessageToAgent(session, message string) error {
	rt := agentmodel.RuntimeClaudeCode
	if s.app.storage != nil {
		if _, member, err := s.app.storage.FindMemberBySessionName(session); err == nil {
			rt = member.RuntimeType
		}
	}
	return s.app.engine.SendMessageToAgent(session, message, rt)
}

// newApp wires every core package into one Engine, with the exit
// monitor's callback bound to CancelPendingRegistration.
func newApp() (*app, error) {
	home := config.AgentmuxHome()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store := storage.New(home)
	if err := store.MigrateLegacyLayout(); err != nil {
		return nil, fmt.Errorf("migrate storage layout: %w", err)
	}

	state := sessionstate.New(filepath.Join(home, "runtime.json"))
	if err := state.Load(); err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	activity := activitylog.New(true, filepath.Join(home, "activity.jsonl"), "agentmuxd", "")

	a := &app{cfg: cfg, storage: store, state: state, activity: activity}

	monitor := exitmonitor.New(func(session, runtimeType, role string, exitCode int) {
		if a.state != nil {
			// Best-effort: the session may never have been registered.
			_ = a.state.RecordExit(session, exitCode)
		}
		if a.engine != nil {
			a.engine.CancelPendingRegistration(session)
		}
	})
	a.monitor = monitor

	backend := ptybackend.New(monitor.HandleExit)
	a.backend = backend

	helper := sessioncmd.New(backend)
	a.helper = helper

	deliveryEngine := delivery.New(helper)

	bus := eventbus.New(eventSender{app: a})
	a.events = bus

	adapters := func(rt agentmodel.RuntimeType) (runtimeadapter.Adapter, error) {
		template := cfg.LaunchCommandTemplate(rt.String(), defaultLaunchCommand(rt))
		return runtimeadapter.New(rt, runtimeadapter.Config{
			Helper:                helper,
			LaunchCommandTemplate: template,
		})
	}

	iterations := continuation.NewIterationTracker(cfg.MaxContinuationIterations(10))
	iterations.Persist = func(session, task string, count int) {
		_ = store.SaveIterationCount(session, task, count)
	}
	if persisted, err := store.LoadIterationCounts(); err == nil {
		for k, count := range persisted {
			if session, task, ok := storage.SplitIterationKey(k); ok {
				iterations.Restore(session, task, count)
			}
		}
	}
	a.analyzer = continuation.NewAnalyzer(iterations, cfg.IdleCycles(0), cfg.IdlePollInterval(0))

	engine := registration.New(registration.Config{
		Backend:       backend,
		Helper:        helper,
		Monitor:       monitor,
		State:         state,
		Storage:       store,
		Delivery:      deliveryEngine,
		Adapters:      adapters,
		Templates:     store,
		ProcessConfig: cfg,
		APIPort:       apiPort(cfg),
		SkillCatalog:  cfg.SkillCatalog(),
		Activity:      activity,
		Events:        bus,
	})
	a.engine = engine

	return a, nil
}

// defaultLaunchCommand is the bare CLI invocation for a runtime flavor when
// no operator override is configured; resolved skill flags are appended
// to it.
func defaultLaunchCommand(rt agentmodel.RuntimeType) string {
	switch rt {
	case agentmodel.RuntimeGeminiCLI:
		return "gemini"
	case agentmodel.RuntimeCodexCLI:
		return "codex"
	default:
		return "claude"
	}
}

// apiPort is the backend port agents see as AGENTMUX_API_URL.
// AGENTMUX_API_PORT overrides it; 0 (the default) means the CLI has no
// HTTP surface of its own to advertise — the out-of-scope HTTP projection
// layer supplies a real one in a full deployment.
func apiPort(_ *config.Config) int {
	if port, err := strconv.Atoi(os.Getenv("AGENTMUX_API_PORT")); err == nil && port > 0 {
		return port
	}
	return 0
}
