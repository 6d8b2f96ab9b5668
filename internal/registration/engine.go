// Package registration implements the Agent Registration Engine: the
// progressive-escalation state machine that converts a bare PTY
// session into a registered, calling-back agent, with retry, recovery,
// resume, and background registration-prompt delivery. It is the
// hardest part of the supervisor because it's the one
// place every other subsystem — backend, adapters, exit monitor, delivery,
// persistence — has to cooperate correctly under cancellation.
package registration

import (
	"fmt"
	"sync"
	"time"

	"agentmux/internal/activitylog"
	"agentmux/internal/agentmodel"
	"agentmux/internal/config"
	"agentmux/internal/delivery"
	"agentmux/internal/ptybackend"
	"agentmux/internal/runtimeadapter"
	"agentmux/internal/sessionstate"
	"agentmux/internal/storage"
)

// Backend is the subset of ptybackend.Backend the engine needs.
type Backend interface {
	SessionExists(name string) bool
	CreateSession(name, cwd string, opts ptybackend.CreateOptions) (ptybackend.CreatedSession, error)
	KillSession(name string) error
	SetEnvironmentVariable(name, key, value string) error
}

// Helper is the subset of sessioncmd.Helper the engine drives directly
// (outside of the Adapter and DeliveryEngine abstractions).
type Helper interface {
	SendEscape(session string) error
	SendEnter(session string) error
	SendCtrlC(session string) error
	SendKey(session, symbolic string) error
	ClearCurrentCommandLine(session string) error
	CapturePane(session string, lines int) (string, error)
	OnData(session string, cb ptybackend.DataCallback) (unsubscribe func(), err error)
	SendMessage(session, text string) error
}

// ExitMonitor is the subset of exitmonitor.Monitor the engine needs.
type ExitMonitor interface {
	StartMonitoring(session, runtimeType, role string)
	StopMonitoring(session string)
}

// StateStore is the subset of sessionstate.Store the engine needs.
type StateStore interface {
	Register(rs sessionstate.RegisteredSession, fresh bool) error
	Unregister(name string) error
	IsRestoredSession(name string) bool
}

// DeliveryEngine is the subset of delivery.Engine the registration prompt
// delivery reuses for the same two-phase-write-then-verify shape.
type DeliveryEngine interface {
	SendMessageWithRetry(session, message string, maxAttempts int, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}) delivery.Result
}

// AdapterFactory builds the runtimeadapter.Adapter for rt. Callers wire this
// to runtimeadapter.New plus whatever Config (launch template, helper) the
// process has assembled; kept as an injected func so this package never
// needs to import the concrete claudecode/geminicli/codexcli packages.
type AdapterFactory func(rt agentmodel.RuntimeType) (runtimeadapter.Adapter, error)

// TemplateLoader loads a role's registration-prompt template from disk (or
// another source). LoadTemplate is called at most once per role per process
// — Engine handles the caching; the loader
// just needs to do the I/O.
type TemplateLoader interface {
	LoadTemplate(role string) (string, error)
}

// BriefingProvider supplies the startup briefing appended to the
// registration prompt — the external SessionMemoryService collaborator.
type BriefingProvider interface {
	Briefing(sessionName, role string) (string, error)
}

// EventPublisher is the subset of eventbus.Bus the engine drives when an
// AgentStatus transition happens under it. Satisfied by
// *eventbus.Bus.PublishStatusChange; optional — nil means no publication,
// and publishing is as best-effort as the storage update it accompanies.
type EventPublisher interface {
	PublishStatusChange(eventType, teamID, memberID, sessionName, memberName string, field agentmodel.ChangedField, previous, newValue string)
}

// Config bundles Engine's construction dependencies.
type Config struct {
	Backend        Backend
	Helper         Helper
	Monitor        ExitMonitor
	State          StateStore
	Storage        *storage.Service
	Delivery       DeliveryEngine
	Adapters       AdapterFactory
	Templates      TemplateLoader
	Briefing       BriefingProvider // optional
	ProcessConfig  *config.Config   // optional; nil is treated as empty
	APIPort        int              // for AGENTMUX_API_URL
	SkillCatalog   map[string]agentmodel.Skill // optional; resolves CreateInput.EffectiveSkills
	Activity       *activitylog.Logger         // optional; Nop() used if nil
	Events         EventPublisher              // optional; nil means no event-bus publication
}

// Engine owns agent-session creation, teardown, messaging, and health.
type Engine struct {
	backend  Backend
	helper   Helper
	monitor  ExitMonitor
	state    StateStore
	storage  *storage.Service
	delivery DeliveryEngine
	adapters AdapterFactory
	templates TemplateLoader
	briefing BriefingProvider
	cfg      *config.Config
	apiPort  int
	skills   map[string]agentmodel.Skill
	activity *activitylog.Logger
	events   EventPublisher

	abortsMu sync.Mutex
	aborts   map[string]chan struct{}

	templateCacheMu sync.Mutex
	templateCache   map[string]string

	statusMu   sync.Mutex
	lastStatus map[string]agentmodel.AgentStatus
}

// New constructs an Engine. It does not hook itself into the exit monitor:
// the caller builds Monitor with an OnExitDetected callback that calls
// Engine.CancelPendingRegistration (internal/cmd does this).
func New(c Config) *Engine {
	if c.ProcessConfig == nil {
		c.ProcessConfig = &config.Config{}
	}
	if c.Activity == nil {
		c.Activity = activitylog.Nop()
	}
	return &Engine{
		backend:       c.Backend,
		helper:        c.Helper,
		monitor:       c.Monitor,
		state:         c.State,
		storage:       c.Storage,
		delivery:      c.Delivery,
		adapters:      c.Adapters,
		templates:     c.Templates,
		briefing:      c.Briefing,
		cfg:           c.ProcessConfig,
		apiPort:       c.APIPort,
		skills:        c.SkillCatalog,
		activity:      c.Activity,
		events:        c.Events,
		aborts:        make(map[string]chan struct{}),
		templateCache: make(map[string]string),
		lastStatus:    make(map[string]agentmodel.AgentStatus),
	}
}

// Escalation timing constants. Production defaults; scale() shrinks them
// under
// AGENTMUX_FAST_TIMERS=1.
var (
	StepABudget              = 40 * time.Second
	StepAReadinessTimeout    = 30 * time.Second
	StepAReadinessInterval   = 2 * time.Second
	StepBBudget              = 30 * time.Second
	StepBMinRemainingBudget  = 35 * time.Second
	StepBReadinessRegular    = 45 * time.Second
	StepBReadinessOrchestrator = 45 * time.Second
	StepBRecreateDelay       = 1 * time.Second
	StepBOrchestratorExtraDelay = 5 * time.Second
	PostReadyDrainDelay      = 500 * time.Millisecond
	RecoveryCtrlCDelay       = 300 * time.Millisecond
	RegularRoleBudget        = 120 * time.Second
	OrchestratorRoleBudget   = 300 * time.Second
)

// scale shrinks d for fast-test timing when AGENTMUX_FAST_TIMERS=1 is set.
func scale(d time.Duration) time.Duration {
	if config.FastTimers() {
		d = d / 10
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return d
}

// Sleep is overridable by tests.
var Sleep = time.Sleep

func sleepChecked(d time.Duration, abort <-chan struct{}) {
	if isAborted(abort) {
		return
	}
	Sleep(d)
}

func isAborted(abort <-chan struct{}) bool {
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

// bindAbort creates (or replaces) the cancellation token for session.
func (e *Engine) bindAbort(session string) chan struct{} {
	e.abortsMu.Lock()
	defer e.abortsMu.Unlock()
	ch := make(chan struct{})
	e.aborts[session] = ch
	return ch
}

// CancelPendingRegistration fires session's abort signal and removes the
// token. Safe to call even if no
// registration is in flight for session.
func (e *Engine) CancelPendingRegistration(session string) {
	e.abortsMu.Lock()
	ch, ok := e.aborts[session]
	if ok {
		delete(e.aborts, session)
	}
	e.abortsMu.Unlock()
	if ok {
		close(ch)
	}
}

// CreateInput is the input to CreateAgentSession.
type CreateInput struct {
	SessionName     string
	Role            string
	ProjectPath     string
	MemberID        string
	RuntimeType     *agentmodel.RuntimeType // nil: resolved from storage
	TeamID          string
	Command         string   // shell/runtime launch vehicle, e.g. "bash"
	EffectiveSkills []string // role defaults ∪ overrides ∖ exclusions
}

// Result is the outcome of a public Engine operation.
type Result struct {
	Success     bool   `json:"success"`
	SessionName string `json:"sessionName,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

func fail(session string, err error) Result {
	return Result{Success: false, SessionName: session, Error: err.Error()}
}

func ok(session, message string) Result {
	return Result{Success: true, SessionName: session, Message: message}
}

// CreateAgentSession attempts recovery when the session already exists,
// else creates it fresh, followed by the two-step progressive escalation.
func (e *Engine) CreateAgentSession(in CreateInput) Result {
	rt := e.resolveRuntimeType(in)
	// Bound for the lifetime of the session, not just this call: the
	// registration prompt fires asynchronously after escalation returns and
	// must still be cancellable if the PTY exits mid-flight. Cleared by
	// CancelPendingRegistration, invoked either by the exit monitor callback
	// or by TerminateAgentSession.
	abort := e.bindAbort(in.SessionName)

	if e.backend.SessionExists(in.SessionName) {
		if res, recovered := e.tryRecover(in, rt, abort); recovered {
			return res
		}
		// Recovery failed: kill and fall through to fresh creation.
		e.backend.KillSession(in.SessionName)
	}

	if err := e.createFresh(in, rt); err != nil {
		return fail(in.SessionName, err)
	}

	return e.escalate(in, rt, abort)
}

func (e *Engine) resolveRuntimeType(in CreateInput) agentmodel.RuntimeType {
	if in.RuntimeType != nil {
		return *in.RuntimeType
	}
	if e.storage == nil {
		return agentmodel.RuntimeClaudeCode
	}
	if in.Role == agentmodel.OrchestratorRole {
		if cfg, err := e.storage.GetOrchestratorStatus(); err == nil {
			return cfg.RuntimeType
		}
		return agentmodel.RuntimeClaudeCode
	}
	if in.TeamID != "" && in.MemberID != "" {
		if team, err := e.storage.GetTeam(in.TeamID); err == nil {
			for _, m := range team.Members {
				if m.ID == in.MemberID {
					return m.RuntimeType
				}
			}
		}
	}
	return agentmodel.RuntimeClaudeCode
}

// tryRecover attempts to reuse an already-running session rather than
// recreating it.
func (e *Engine) tryRecover(in CreateInput, rt agentmodel.RuntimeType, abort <-chan struct{}) (Result, bool) {
	adapter, err := e.adapters(rt)
	if err != nil {
		return Result{}, false
	}

	if adapter.DetectRuntime(in.SessionName, false) {
		if e.verifyRegistration(in, rt, adapter, abort, true /* skipCleanup */) {
			e.registerPersisted(in, rt, false)
			return ok(in.SessionName, "recovered existing session"), true
		}
		return Result{}, false
	}

	e.helper.SendCtrlC(in.SessionName)
	sleepChecked(scale(RecoveryCtrlCDelay), abort)
	e.helper.SendCtrlC(in.SessionName)
	sleepChecked(scale(RecoveryCtrlCDelay), abort)
	adapter.ClearDetectionCache(in.SessionName)

	if adapter.DetectRuntime(in.SessionName, true) {
		if e.verifyRegistration(in, rt, adapter, abort, false) {
			e.registerPersisted(in, rt, false)
			return ok(in.SessionName, "recovered existing session after cleanup"), true
		}
	}
	return Result{}, false
}

// verifyRegistration runs a single registration-prompt delivery attempt.
func (e *Engine) verifyRegistration(in CreateInput, rt agentmodel.RuntimeType, adapter runtimeadapter.Adapter, abort <-chan struct{}, skipCleanup bool) bool {
	if !skipCleanup {
		e.helper.ClearCurrentCommandLine(in.SessionName)
	}
	return e.deliverRegistrationPrompt(in, rt, adapter, abort, 1)
}

// createFresh creates the PTY session and exports the three per-session
// environment variables into it.
func (e *Engine) createFresh(in CreateInput, rt agentmodel.RuntimeType) error {
	command := in.Command
	if command == "" {
		command = "bash"
	}
	if _, err := e.backend.CreateSession(in.SessionName, in.ProjectPath, ptybackend.CreateOptions{Command: command}); err != nil {
		return err
	}
	if !e.backend.SessionExists(in.SessionName) {
		return fmt.Errorf("registration: session %q not present after creation", in.SessionName)
	}
	e.registerPersisted(in, rt, true)

	e.backend.SetEnvironmentVariable(in.SessionName, "TMUX_SESSION_NAME", in.SessionName)
	e.backend.SetEnvironmentVariable(in.SessionName, "AGENTMUX_ROLE", in.Role)
	e.backend.SetEnvironmentVariable(in.SessionName, "AGENTMUX_API_URL", fmt.Sprintf("http://localhost:%d", e.apiPort))

	e.transitionStatus(in.SessionName, in.TeamID, in.MemberID, agentmodel.StatusActivating)
	return nil
}

func (e *Engine) registerPersisted(in CreateInput, rt agentmodel.RuntimeType, fresh bool) {
	if e.state == nil {
		return
	}
	e.state.Register(sessionstate.RegisteredSession{
		SessionName: in.SessionName,
		Cwd:         in.ProjectPath,
		RuntimeType: rt,
		Role:        in.Role,
		TeamID:      in.TeamID,
		CreatedAt:   time.Now(),
	}, fresh)
}

// updateStatusBestEffort persists a status change; failures are non-fatal.
func (e *Engine) updateStatusBestEffort(session string, status agentmodel.AgentStatus) {
	if e.storage == nil {
		return
	}
	_ = e.storage.UpdateAgentStatus(session, status)
}

// transitionStatus persists an AgentStatus change and, if an EventPublisher
// is configured, publishes it on the Event Bus. previous is read from (and newStatus
// recorded into) an in-process map — it is not reloaded from storage, so it
// reflects this Engine's own view of the session rather than an external
// writer's.
func (e *Engine) transitionStatus(session, teamID, memberID string, newStatus agentmodel.AgentStatus) {
	e.updateStatusBestEffort(session, newStatus)

	e.statusMu.Lock()
	previous, known := e.lastStatus[session]
	if !known {
		previous = agentmodel.StatusInactive
	}
	e.lastStatus[session] = newStatus
	e.statusMu.Unlock()

	if e.events == nil || previous == newStatus {
		return
	}
	e.events.PublishStatusChange("agent:"+newStatus.String(), teamID, memberID, session, "", agentmodel.FieldAgentStatus, previous.String(), newStatus.String())
}

// TerminateAgentSession kills the PTY session, stops the exit monitor, and
// unregisters it from persistence.
func (e *Engine) TerminateAgentSession(sessionName string, role string) Result {
	e.CancelPendingRegistration(sessionName)
	e.monitor.StopMonitoring(sessionName)
	if err := e.backend.KillSession(sessionName); err != nil {
		return fail(sessionName, err)
	}
	if e.state != nil {
		e.state.Unregister(sessionName)
	}
	e.transitionStatus(sessionName, "", "", agentmodel.StatusInactive)
	return ok(sessionName, "terminated")
}
