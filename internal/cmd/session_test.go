package cmd

import (
	"testing"

	"agentmux/internal/agentmodel"
	"agentmux/internal/config"
	"agentmux/internal/storage"
)

func TestResolveEffectiveSkills_CombinesConfigStorageAndFlags(t *testing.T) {
	store := storage.New(t.TempDir())
	if err := store.SaveTeam(storage.Team{ID: "team-1", Members: []agentmodel.Member{{
		ID:                 "m1",
		SkillOverrides:     []string{"browser"},
		ExcludedRoleSkills: []string{"git"},
	}}}); err != nil {
		t.Fatal(err)
	}
	a := &app{
		cfg: &config.Config{Roles: map[string]config.RoleConfig{
			"developer": {Skills: []string{"web-search", "git"}},
		}},
		storage: store,
	}

	got := resolveEffectiveSkills(a, "developer", "team-1", "m1", []string{"mcp"}, nil)

	want := map[string]bool{"web-search": true, "browser": true, "mcp": true}
	if len(got) != len(want) {
		t.Fatalf("resolveEffectiveSkills = %v, want the set %v", got, want)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected skill %q in %v", s, got)
		}
	}
}

func TestResolveEffectiveSkills_FlagExclusionDisablesRoleDefault(t *testing.T) {
	a := &app{cfg: &config.Config{Roles: map[string]config.RoleConfig{
		"developer": {Skills: []string{"web-search", "git"}},
	}}}

	got := resolveEffectiveSkills(a, "developer", "", "", nil, []string{"web-search"})

	if len(got) != 1 || got[0] != "git" {
		t.Errorf("resolveEffectiveSkills = %v, want [git]", got)
	}
}
