package registration

import (
	"time"

	"agentmux/internal/agentmodel"
	"agentmux/internal/storage"
	"agentmux/internal/terminal"
)

// DefaultHealthTimeout is checkAgentHealth's default race timer.
var DefaultHealthTimeout = 1 * time.Second

// DefaultReadyTimeout is waitForAgentReady's default deadline.
var DefaultReadyTimeout = 120 * time.Second

// ReadyPollInterval is the polling cadence waitForAgentReady falls back to
// alongside the data-stream subscription.
var ReadyPollInterval = 500 * time.Millisecond

// HealthStatus is checkAgentHealth's result.
type HealthStatus struct {
	Running   bool
	Status    string
	Timestamp time.Time
}

// CheckAgentHealth races backend.SessionExists against timeout. "running"
// means the backend reports the session present and the race didn't time
// out.
func (e *Engine) CheckAgentHealth(sessionName string, timeout time.Duration) HealthStatus {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	done := make(chan bool, 1)
	go func() { done <- e.backend.SessionExists(sessionName) }()

	select {
	case running := <-done:
		return HealthStatus{Running: running, Status: e.healthStatusString(sessionName, running), Timestamp: time.Now()}
	case <-time.After(timeout):
		return HealthStatus{Running: false, Status: "timeout", Timestamp: time.Now()}
	}
}

func (e *Engine) healthStatusString(sessionName string, running bool) string {
	if !running {
		return agentmodel.StatusInactive.String()
	}
	if e.storage == nil {
		return agentmodel.StatusActive.String()
	}
	if _, member, err := e.storage.FindMemberBySessionName(sessionName); err == nil {
		return member.AgentStatus.String()
	}
	if cfg, err := e.storage.GetOrchestratorStatus(); err == nil && cfg.SessionName == sessionName {
		return cfg.AgentStatus.String()
	}
	return agentmodel.StatusActive.String()
}

// WaitForAgentReady races two readiness signals: a capturePane poll loop,
// and a data-stream subscription whose prompt-tail match is reconfirmed
// with a fresh capturePane (a chunk boundary can slice a frame so that its
// tail looks like a prompt, so the stream alone is not trusted).
// timeout<=0 selects DefaultReadyTimeout.
func (e *Engine) WaitForAgentReady(sessionName string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	deadline := time.Now().Add(timeout)

	promptSeen := make(chan struct{}, 1)
	unsubscribe, err := e.helper.OnData(sessionName, func(data []byte) {
		if terminal.PromptStream.Match(data) {
			select {
			case promptSeen <- struct{}{}:
			default:
			}
		}
	})
	if err == nil {
		defer unsubscribe()
	}

	for time.Now().Before(deadline) {
		if e.confirmAtPrompt(sessionName) {
			return true
		}
		select {
		case <-promptSeen:
			if e.confirmAtPrompt(sessionName) {
				return true
			}
		case <-time.After(ReadyPollInterval):
		}
	}
	return false
}

func (e *Engine) confirmAtPrompt(sessionName string) bool {
	pane, err := e.helper.CapturePane(sessionName, 20)
	return err == nil && terminal.IsAtPrompt(pane)
}

// SendMessageToAgent delivers message via the Delivery Engine, resolving
// the runtime adapter for rt if one isn't already known to the caller.
func (e *Engine) SendMessageToAgent(sessionName, message string, rt agentmodel.RuntimeType) error {
	adapter, err := e.adapters(rt)
	if err != nil {
		adapter = nil
	}
	abort := e.currentAbort(sessionName)
	result := e.delivery.SendMessageWithRetry(sessionName, message, 0, rt, adapter, abort)
	if e.storage != nil {
		e.storage.AppendDeliveryLog(storage.DeliveryLogEntry{
			SessionName: sessionName,
			Message:     message,
			Success:     result.Success,
			Attempts:    result.Attempts,
			Timestamp:   time.Now(),
		})
	}
	if !result.Success {
		return result.Err
	}
	return nil
}

// SendKeyToAgent writes a single symbolic key directly to the session,
// bypassing the Delivery Engine's retry/verification machinery.
func (e *Engine) SendKeyToAgent(sessionName, key string) error {
	return e.helper.SendKey(sessionName, key)
}
