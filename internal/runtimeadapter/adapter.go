// Package runtimeadapter implements the Runtime Adapter: the
// polymorphic capability set that hides the differences between
// Claude-Code, Gemini-CLI, and Codex-CLI behind one interface. Concrete
// adapters live in claudecode/, geminicli/, and codexcli/ and self-register
// via init(), following a registry-plus-self-registration pattern.
package runtimeadapter

import (
	"fmt"
	"sync"
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/sessioncmd"
)

// Quirks documents the per-runtime TUI behaviors callers must honor.
// These are empirical, table-driven rules, never hard-coded at call sites. Not every adapter sets every field.
type Quirks struct {
	// EscapeDefocusesInput is true when sending Escape permanently moves
	// focus out of the input box (Gemini-CLI).
	EscapeDefocusesInput bool
	// CtrlCQuitsOnEmptyPrompt is true when Ctrl-C on an empty prompt
	// triggers the runtime's quit command instead of merely clearing input.
	CtrlCQuitsOnEmptyPrompt bool
	// CtrlUIgnored is true when the runtime's input box doesn't honor the
	// usual kill-line keystroke.
	CtrlUIgnored bool
	// PromptVisibleDuringProcessing is true when the runtime's prompt stays
	// on screen while it's busy, so delivery verification can't rely on the
	// prompt disappearing (it must look for other activity signals instead).
	PromptVisibleDuringProcessing bool
}

// Adapter is the capability set every runtime flavor implements.
type Adapter interface {
	RuntimeType() agentmodel.RuntimeType

	// ExecuteInitScript writes the runtime's launch command — the
	// configured template plus resolved skill flags — to session and
	// presses Enter.
	ExecuteInitScript(session, cwd string, flags []string) error

	// DetectRuntime sends a probe and inspects the pane for the runtime's
	// completion/menu signature, caching the result per session for a
	// short TTL unless forceRefresh is set.
	DetectRuntime(session string, forceRefresh bool) bool

	// ClearDetectionCache invalidates any cached DetectRuntime result for
	// session.
	ClearDetectionCache(session string)

	// WaitForRuntimeReady polls CapturePane until the runtime's prompt
	// appears or timeout elapses.
	WaitForRuntimeReady(session string, timeout, interval time.Duration) bool

	// PostInitialize runs runtime-specific post-launch hooks. Failure is
	// non-fatal; callers log and continue.
	PostInitialize(session string) error

	Quirks() Quirks
}

// ShellModeRecoverer is implemented by adapters whose TUI can fall into a
// host-shell passthrough mode (Gemini-CLI's `!` prompt) that needs active
// recovery.
type ShellModeRecoverer interface {
	// RecoverFromShellMode sends Escape up to maxAttempts times and
	// reverifies the prompt between attempts, returning true once the
	// runtime's normal prompt is confirmed.
	RecoverFromShellMode(session string, maxAttempts int) bool
}

// ResumeCapable is implemented by adapters that support resuming the most
// recent session (Claude-Code's `/resume`).
type ResumeCapable interface {
	// Resume sends the runtime's resume command followed by Enter to
	// select the most recent session.
	Resume(session string) error
}

// Config is shared construction input for every concrete adapter.
type Config struct {
	Helper *sessioncmd.Helper
	// LaunchCommandTemplate is the configured launch command, e.g. "claude"
	// or "gemini --yolo"; split with shlex and combined with resolved flags.
	LaunchCommandTemplate string
	// DetectionTTL bounds how long a DetectRuntime result is reused before
	// a fresh probe is required. Zero selects DefaultDetectionTTL.
	DetectionTTL time.Duration
}

// DefaultDetectionTTL is the default cache lifetime for DetectRuntime.
const DefaultDetectionTTL = 2 * time.Second

// Factory constructs an Adapter from Config.
type Factory func(cfg Config) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[agentmodel.RuntimeType]Factory)
)

// Register installs a Factory for rt. Concrete adapter packages call this
// from init().
func Register(rt agentmodel.RuntimeType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[rt] = f
}

// New builds the Adapter registered for rt.
func New(rt agentmodel.RuntimeType, cfg Config) (Adapter, error) {
	registryMu.RLock()
	f, ok := registry[rt]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("runtimeadapter: no adapter registered for %s", rt)
	}
	if cfg.DetectionTTL <= 0 {
		cfg.DetectionTTL = DefaultDetectionTTL
	}
	return f(cfg), nil
}
