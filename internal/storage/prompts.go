package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MemberPromptPath returns the per-member system prompt path
// (teams/<teamId>/prompts/<memberId>.md).
func (s *Service) MemberPromptPath(teamID, memberID string) string {
	return filepath.Join(s.teamDir(teamID), "prompts", memberID+".md")
}

// GetMemberPrompt reads a member's system prompt.
func (s *Service) GetMemberPrompt(teamID, memberID string) (string, error) {
	return s.readPromptFile(s.MemberPromptPath(teamID, memberID))
}

// SaveMemberPrompt atomically writes a member's system prompt.
func (s *Service) SaveMemberPrompt(teamID, memberID, content string) error {
	return writeJSONAtomic(s.MemberPromptPath(teamID, memberID), []byte(content))
}

// OrchestratorPromptPath returns teams/orchestrator/prompt.md.
func (s *Service) OrchestratorPromptPath() string {
	return filepath.Join(s.orchestratorDir(), "prompt.md")
}

// GetOrchestratorPrompt reads the orchestrator's system prompt.
func (s *Service) GetOrchestratorPrompt() (string, error) {
	return s.readPromptFile(s.OrchestratorPromptPath())
}

// RegistrationPromptPath returns the transient registration-payload path
// for a Claude-Code session: ~/.agentmux/prompts/<session>-init.md.
func (s *Service) RegistrationPromptPath(session string) string {
	return filepath.Join(s.root, "prompts", session+"-init.md")
}

// ProjectRegistrationPromptPath returns the transient registration-payload
// path for a TUI runtime, kept within the project's own workspace allowlist
//: <projectPath>/.agentmux/prompts/<session>-init.md.
func ProjectRegistrationPromptPath(projectPath, session string) string {
	return filepath.Join(projectPath, ".agentmux", "prompts", session+"-init.md")
}

// WriteRegistrationPrompt atomically writes the registration payload to
// path (either RegistrationPromptPath or ProjectRegistrationPromptPath).
func WriteRegistrationPrompt(path, content string) error {
	return writeJSONAtomic(path, []byte(content))
}

// RegistrationTemplatePath returns the on-disk location of a role's
// registration-prompt template. Operators drop a file here per role; orchestrator is a
// role like any other.
func (s *Service) RegistrationTemplatePath(role string) string {
	return filepath.Join(s.root, "templates", role+".md")
}

// LoadTemplate implements registration.TemplateLoader. A missing
// role-specific file is not an error — it falls back to a minimal generic template so a role
// nobody has authored a template for can still register.
func (s *Service) LoadTemplate(role string) (string, error) {
	content, err := s.readPromptFile(s.RegistrationTemplatePath(role))
	if err == nil {
		return content, nil
	}
	if errors.Is(err, ErrNotFound) {
		return defaultRegistrationTemplate(role), nil
	}
	return "", err
}

func defaultRegistrationTemplate(role string) string {
	return "You are the " + role + " agent for session {{SESSION_ID}}.\n\n" +
		"<<MEMBER_ID_BLOCK>>\nYour member id is {{MEMBER_ID}}.\n<<END_MEMBER_ID_BLOCK>>\n\n" +
		"Call back over the registration channel to confirm you are ready, then " +
		"await your assignment.\n"
}

func (s *Service) readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	return string(data), nil
}
