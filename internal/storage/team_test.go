package storage

import (
	"errors"
	"testing"
	"time"

	"agentmux/internal/agentmodel"
)

func withFixedNow(t *testing.T, when time.Time) {
	t.Helper()
	orig := Now
	Now = func() time.Time { return when }
	t.Cleanup(func() { Now = orig })
}

func TestSaveTeamAndGetTeams_RoundTrip(t *testing.T) {
	svc := New(t.TempDir())
	team := Team{ID: "t1", Members: []agentmodel.Member{
		{ID: "m1", TeamID: "t1", SessionName: "t1-m1"},
	}}
	if err := svc.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	teams, err := svc.GetTeams()
	if err != nil {
		t.Fatalf("GetTeams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != "t1" {
		t.Fatalf("got %+v", teams)
	}
	if len(teams[0].Members) != 1 || teams[0].Members[0].SessionName != "t1-m1" {
		t.Fatalf("got members %+v", teams[0].Members)
	}
}

func TestGetTeams_EmptyWhenNoTeamsDir(t *testing.T) {
	svc := New(t.TempDir())
	teams, err := svc.GetTeams()
	if err != nil {
		t.Fatalf("GetTeams: %v", err)
	}
	if len(teams) != 0 {
		t.Fatalf("expected no teams, got %+v", teams)
	}
}

func TestGetTeams_SkipsOrchestratorDir(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.UpdateOrchestratorRuntimeType(agentmodel.RuntimeClaudeCode); err != nil {
		t.Fatalf("UpdateOrchestratorRuntimeType: %v", err)
	}
	if err := svc.SaveTeam(Team{ID: "t1"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	teams, err := svc.GetTeams()
	if err != nil {
		t.Fatalf("GetTeams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != "t1" {
		t.Fatalf("expected only t1, got %+v", teams)
	}
}

func TestDeleteTeam_RemovesDirectory(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.SaveTeam(Team{ID: "t1"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	if err := svc.DeleteTeam("t1"); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	teams, err := svc.GetTeams()
	if err != nil {
		t.Fatalf("GetTeams: %v", err)
	}
	if len(teams) != 0 {
		t.Fatalf("expected team removed, got %+v", teams)
	}
}

func TestGetOrchestratorStatus_NotFoundWhenUnset(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.GetOrchestratorStatus(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrchestratorRuntimeType_CreatesAndUpdates(t *testing.T) {
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, when)
	svc := New(t.TempDir())
	if err := svc.UpdateOrchestratorRuntimeType(agentmodel.RuntimeGeminiCLI); err != nil {
		t.Fatalf("UpdateOrchestratorRuntimeType: %v", err)
	}
	cfg, err := svc.GetOrchestratorStatus()
	if err != nil {
		t.Fatalf("GetOrchestratorStatus: %v", err)
	}
	if cfg.RuntimeType != agentmodel.RuntimeGeminiCLI {
		t.Errorf("got runtime %v", cfg.RuntimeType)
	}
	if !cfg.UpdatedAt.Equal(when) {
		t.Errorf("got UpdatedAt %v, want %v", cfg.UpdatedAt, when)
	}
}

func TestUpdateTeamMemberRuntimeType_UpdatesMatchingMember(t *testing.T) {
	svc := New(t.TempDir())
	team := Team{ID: "t1", Members: []agentmodel.Member{
		{ID: "m1", TeamID: "t1", SessionName: "t1-m1"},
		{ID: "m2", TeamID: "t1", SessionName: "t1-m2"},
	}}
	if err := svc.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	if err := svc.UpdateTeamMemberRuntimeType("t1", "m2", agentmodel.RuntimeCodexCLI); err != nil {
		t.Fatalf("UpdateTeamMemberRuntimeType: %v", err)
	}
	got, err := svc.readTeam("t1")
	if err != nil {
		t.Fatalf("readTeam: %v", err)
	}
	if got.Members[0].RuntimeType != agentmodel.RuntimeClaudeCode {
		t.Errorf("m1 runtime unexpectedly changed: %v", got.Members[0].RuntimeType)
	}
	if got.Members[1].RuntimeType != agentmodel.RuntimeCodexCLI {
		t.Errorf("m2 runtime = %v, want codex-cli", got.Members[1].RuntimeType)
	}
}

func TestUpdateTeamMemberRuntimeType_UnknownMemberIsNotFound(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.SaveTeam(Team{ID: "t1"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	err := svc.UpdateTeamMemberRuntimeType("t1", "ghost", agentmodel.RuntimeCodexCLI)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindMemberBySessionName_FindsAcrossTeams(t *testing.T) {
	svc := New(t.TempDir())
	svc.SaveTeam(Team{ID: "t1", Members: []agentmodel.Member{{ID: "m1", TeamID: "t1", SessionName: "t1-m1"}}})
	svc.SaveTeam(Team{ID: "t2", Members: []agentmodel.Member{{ID: "m2", TeamID: "t2", SessionName: "t2-m2"}}})

	teamID, member, err := svc.FindMemberBySessionName("t2-m2")
	if err != nil {
		t.Fatalf("FindMemberBySessionName: %v", err)
	}
	if teamID != "t2" || member.ID != "m2" {
		t.Errorf("got team %s member %+v", teamID, member)
	}
}

func TestFindMemberBySessionName_NotFound(t *testing.T) {
	svc := New(t.TempDir())
	if _, _, err := svc.FindMemberBySessionName("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAgentStatus_UpdatesOrchestratorWhenSessionMatches(t *testing.T) {
	svc := New(t.TempDir())
	svc.saveOrchestratorStatus(OrchestratorConfig{SessionName: "orchestrator-main"})

	if err := svc.UpdateAgentStatus("orchestrator-main", agentmodel.StatusActive); err != nil {
		t.Fatalf("UpdateAgentStatus: %v", err)
	}
	cfg, err := svc.GetOrchestratorStatus()
	if err != nil {
		t.Fatalf("GetOrchestratorStatus: %v", err)
	}
	if cfg.AgentStatus != agentmodel.StatusActive {
		t.Errorf("got %v", cfg.AgentStatus)
	}
}

func TestUpdateAgentStatus_UpdatesTeamMemberWhenSessionMatches(t *testing.T) {
	svc := New(t.TempDir())
	svc.SaveTeam(Team{ID: "t1", Members: []agentmodel.Member{{ID: "m1", TeamID: "t1", SessionName: "t1-m1"}}})

	if err := svc.UpdateAgentStatus("t1-m1", agentmodel.StatusStarted); err != nil {
		t.Fatalf("UpdateAgentStatus: %v", err)
	}
	team, err := svc.readTeam("t1")
	if err != nil {
		t.Fatalf("readTeam: %v", err)
	}
	if team.Members[0].AgentStatus != agentmodel.StatusStarted {
		t.Errorf("got %v", team.Members[0].AgentStatus)
	}
}

func TestUpdateAgentStatus_UnknownSessionIsNotFound(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.UpdateAgentStatus("ghost", agentmodel.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
