// Package agentmodel holds the data-model types shared across the
// supervisor: agent/working status enums, runtime flavors, and the
// event/subscription records the other packages key off of.
package agentmodel

import (
	"encoding/json"
	"fmt"
)

// AgentStatus is the lifecycle state of a registered agent session.
type AgentStatus int

const (
	StatusInactive AgentStatus = iota
	StatusActivating
	StatusStarted
	StatusActive
)

// String renders the exact wire-level vocabulary.
func (s AgentStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActivating:
		return "activating"
	case StatusStarted:
		return "started"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// ParseAgentStatus parses the wire-level vocabulary back into an AgentStatus.
func ParseAgentStatus(s string) (AgentStatus, bool) {
	switch s {
	case "inactive":
		return StatusInactive, true
	case "activating":
		return StatusActivating, true
	case "started":
		return StatusStarted, true
	case "active":
		return StatusActive, true
	default:
		return StatusInactive, false
	}
}

// CanTransition reports whether moving from s to next is a legal
// transition. Termination (-> inactive) is always legal from any state.
func (s AgentStatus) CanTransition(next AgentStatus) bool {
	if next == StatusInactive {
		return true
	}
	switch s {
	case StatusInactive:
		return next == StatusActivating
	case StatusActivating:
		return next == StatusStarted
	case StatusStarted:
		return next == StatusActive
	default:
		return false
	}
}

// MarshalJSON renders the exact wire-level vocabulary.
func (s AgentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the wire-level vocabulary.
func (s *AgentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, ok := ParseAgentStatus(str)
	if !ok {
		return fmt.Errorf("agentmodel: invalid AgentStatus %q", str)
	}
	*s = parsed
	return nil
}

// WorkingStatus is orthogonal to AgentStatus: whether the agent is currently
// processing something or waiting for input.
type WorkingStatus int

const (
	WorkingIdle WorkingStatus = iota
	WorkingBusy
)

func (w WorkingStatus) String() string {
	if w == WorkingBusy {
		return "busy"
	}
	return "idle"
}

// ParseWorkingStatus parses the wire-level vocabulary.
func ParseWorkingStatus(s string) (WorkingStatus, bool) {
	switch s {
	case "idle":
		return WorkingIdle, true
	case "busy":
		return WorkingBusy, true
	default:
		return WorkingIdle, false
	}
}

// MarshalJSON renders the exact wire-level vocabulary.
func (w WorkingStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON parses the wire-level vocabulary.
func (w *WorkingStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, ok := ParseWorkingStatus(str)
	if !ok {
		return fmt.Errorf("agentmodel: invalid WorkingStatus %q", str)
	}
	*w = parsed
	return nil
}

// RuntimeType identifies the flavor of interactive AI CLI running in a session.
type RuntimeType int

const (
	RuntimeClaudeCode RuntimeType = iota
	RuntimeGeminiCLI
	RuntimeCodexCLI
)

func (r RuntimeType) String() string {
	switch r {
	case RuntimeClaudeCode:
		return "claude-code"
	case RuntimeGeminiCLI:
		return "gemini-cli"
	case RuntimeCodexCLI:
		return "codex-cli"
	default:
		return "unknown"
	}
}

// ParseRuntimeType parses the wire-level vocabulary.
func ParseRuntimeType(s string) (RuntimeType, bool) {
	switch s {
	case "claude-code":
		return RuntimeClaudeCode, true
	case "gemini-cli":
		return RuntimeGeminiCLI, true
	case "codex-cli":
		return RuntimeCodexCLI, true
	default:
		return RuntimeClaudeCode, false
	}
}

// MarshalJSON renders the exact wire-level vocabulary.
func (r RuntimeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses the wire-level vocabulary.
func (r *RuntimeType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, ok := ParseRuntimeType(str)
	if !ok {
		return fmt.Errorf("agentmodel: invalid RuntimeType %q", str)
	}
	*r = parsed
	return nil
}

// IsTUI reports whether the runtime keeps its prompt visible during
// processing and needs the TUI-specific delivery heuristics.
func (r RuntimeType) IsTUI() bool {
	return r != RuntimeClaudeCode
}

// OrchestratorRole is the reserved role name for the fixed orchestrator session.
const OrchestratorRole = "orchestrator"
