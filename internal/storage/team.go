package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentmux/internal/agentmodel"
)

// Team is the persisted record for one team of agents
// (teams/<teamId>/config.json).
type Team struct {
	ID      string             `json:"id"`
	Members []agentmodel.Member `json:"members"`
}

// OrchestratorConfig is the persisted record for the reserved orchestrator
// role.
type OrchestratorConfig struct {
	SessionName   string                  `json:"sessionName"`
	AgentStatus   agentmodel.AgentStatus  `json:"agentStatus"`
	WorkingStatus agentmodel.WorkingStatus `json:"workingStatus"`
	RuntimeType   agentmodel.RuntimeType  `json:"runtimeType"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// Service is the Storage Facade: directory-per-team layout, atomic writes,
// per-path operation locks. Its method set is the minimum
// interface the rest of the core consumes; callers needing the broader
// out-of-scope StorageService (projects/tickets) own that separately.
type Service struct {
	root string // agentmuxHome
}

// New creates a Service rooted at root (typically config.AgentmuxHome()).
func New(root string) *Service {
	return &Service{root: root}
}

func (s *Service) teamsDir() string          { return filepath.Join(s.root, "teams") }
func (s *Service) teamDir(teamID string) string {
	return filepath.Join(s.teamsDir(), teamID)
}
func (s *Service) teamConfigPath(teamID string) string {
	return filepath.Join(s.teamDir(teamID), "config.json")
}
func (s *Service) orchestratorDir() string { return filepath.Join(s.teamsDir(), "orchestrator") }
func (s *Service) orchestratorConfigPath() string {
	return filepath.Join(s.orchestratorDir(), "config.json")
}

// GetTeams returns every team whose config.json exists under teams/.
// Entries for "orchestrator" (not a team) are skipped.
func (s *Service) GetTeams() ([]Team, error) {
	entries, err := os.ReadDir(s.teamsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read teams dir: %v", ErrStorageIO, err)
	}
	var teams []Team
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "orchestrator" {
			continue
		}
		team, err := s.readTeam(e.Name())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// GetTeam reads a single team's config.json by ID.
func (s *Service) GetTeam(teamID string) (Team, error) {
	return s.readTeam(teamID)
}

func (s *Service) readTeam(teamID string) (Team, error) {
	path := s.teamConfigPath(teamID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	var team Team
	if err := json.Unmarshal(data, &team); err != nil {
		return Team{}, fmt.Errorf("%w: parse %s: %v", ErrStorageIO, path, err)
	}
	return team, nil
}

// SaveTeam atomically writes team's config.json.
func (s *Service) SaveTeam(team Team) error {
	data, err := json.MarshalIndent(team, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal team: %v", ErrStorageIO, err)
	}
	return writeJSONAtomic(s.teamConfigPath(team.ID), data)
}

// DeleteTeam removes a team's entire directory.
func (s *Service) DeleteTeam(teamID string) error {
	path := s.teamDir(teamID)
	return withLock(s.teamConfigPath(teamID), func() error {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("%w: remove team dir: %v", ErrStorageIO, err)
		}
		return nil
	})
}

// GetOrchestratorStatus reads teams/orchestrator/config.json.
func (s *Service) GetOrchestratorStatus() (OrchestratorConfig, error) {
	path := s.orchestratorConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return OrchestratorConfig{}, ErrNotFound
		}
		return OrchestratorConfig{}, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	var cfg OrchestratorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return OrchestratorConfig{}, fmt.Errorf("%w: parse %s: %v", ErrStorageIO, path, err)
	}
	return cfg, nil
}

func (s *Service) saveOrchestratorStatus(cfg OrchestratorConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal orchestrator config: %v", ErrStorageIO, err)
	}
	return writeJSONAtomic(s.orchestratorConfigPath(), data)
}

// UpdateOrchestratorRuntimeType updates the orchestrator's persisted
// runtime type, creating the record if absent.
func (s *Service) UpdateOrchestratorRuntimeType(rt agentmodel.RuntimeType) error {
	cfg, err := s.GetOrchestratorStatus()
	if err != nil && err != ErrNotFound {
		return err
	}
	cfg.RuntimeType = rt
	cfg.UpdatedAt = Now()
	return s.saveOrchestratorStatus(cfg)
}

// UpdateTeamMemberRuntimeType updates one member's persisted runtime type
// within a team.
func (s *Service) UpdateTeamMemberRuntimeType(teamID, memberID string, rt agentmodel.RuntimeType) error {
	team, err := s.readTeam(teamID)
	if err != nil {
		return err
	}
	found := false
	for i := range team.Members {
		if team.Members[i].ID == memberID {
			team.Members[i].RuntimeType = rt
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: member %s in team %s", ErrNotFound, memberID, teamID)
	}
	return s.SaveTeam(team)
}

// UpdateAgentStatus updates the AgentStatus for whichever member or
// orchestrator owns sessionName. Status-update failures are logged by the
// caller and treated as non-fatal; this method only
// reports the error, it doesn't decide fatality.
func (s *Service) UpdateAgentStatus(sessionName string, status agentmodel.AgentStatus) error {
	if cfg, err := s.GetOrchestratorStatus(); err == nil && cfg.SessionName == sessionName {
		cfg.AgentStatus = status
		cfg.UpdatedAt = Now()
		return s.saveOrchestratorStatus(cfg)
	}

	teamID, _, err := s.FindMemberBySessionName(sessionName)
	if err != nil {
		return err
	}
	team, err := s.readTeam(teamID)
	if err != nil {
		return err
	}
	for i := range team.Members {
		if team.Members[i].SessionName == sessionName {
			team.Members[i].AgentStatus = status
			return s.SaveTeam(team)
		}
	}
	return fmt.Errorf("%w: session %s", ErrNotFound, sessionName)
}

// FindMemberBySessionName scans every team for a member with the given
// session name, returning its team ID and record.
func (s *Service) FindMemberBySessionName(sessionName string) (teamID string, member agentmodel.Member, err error) {
	teams, err := s.GetTeams()
	if err != nil {
		return "", agentmodel.Member{}, err
	}
	for _, team := range teams {
		for _, m := range team.Members {
			if m.SessionName == sessionName {
				return team.ID, m, nil
			}
		}
	}
	return "", agentmodel.Member{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionName)
}
