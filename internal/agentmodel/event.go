package agentmodel

import "time"

// ChangedField identifies which member field an AgentEvent reports a change to.
type ChangedField int

const (
	FieldAgentStatus ChangedField = iota
	FieldWorkingStatus
	FieldContextUsage
)

func (f ChangedField) String() string {
	switch f {
	case FieldAgentStatus:
		return "agentStatus"
	case FieldWorkingStatus:
		return "workingStatus"
	case FieldContextUsage:
		return "contextUsage"
	default:
		return "unknown"
	}
}

// AgentEvent is an immutable record of an agent lifecycle transition.
type AgentEvent struct {
	ID            string
	Type          string // e.g. "agent:started", "agent:idle" — see eventbus.EventType
	Timestamp     time.Time
	TeamID        string
	MemberID      string
	SessionName   string
	PreviousValue string
	NewValue      string
	ChangedField  ChangedField
}

// Member is the subset of team-member state the core mutates and reads.
// Everything else about a Team/Member is opaque to this module; callers
// own the rest via the StorageService interface in internal/storage.
type Member struct {
	ID                 string
	TeamID             string
	SessionName        string
	Role               string
	RuntimeType        RuntimeType
	SkillOverrides     []string
	ExcludedRoleSkills []string
	AgentStatus        AgentStatus
	WorkingStatus      WorkingStatus
}

// EffectiveSkills returns the role's default skill set unioned with
// overrides and minus exclusions.
func EffectiveSkills(roleDefaults, overrides, exclusions []string) []string {
	excluded := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		excluded[e] = true
	}
	seen := make(map[string]bool, len(roleDefaults)+len(overrides))
	var out []string
	add := func(name string) {
		if excluded[name] || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, s := range roleDefaults {
		add(s)
	}
	for _, s := range overrides {
		add(s)
	}
	return out
}
