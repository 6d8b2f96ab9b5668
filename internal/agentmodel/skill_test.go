package agentmodel

import "testing"

func TestResolveFlags_UnionsMatchingRuntimeOnly(t *testing.T) {
	catalog := map[string]Skill{
		"web-search":         {Name: "web-search", Runtime: RuntimeClaudeCode, Flags: []string{"--allowedTools", "WebSearch"}},
		"browser-automation": {Name: "browser-automation", Runtime: RuntimeGeminiCLI, Flags: []string{"--yolo"}},
	}
	got := ResolveFlags(catalog, []string{"web-search", "browser-automation"}, RuntimeClaudeCode)
	want := []string{"--allowedTools", "WebSearch"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestResolveFlags_UnknownSkillIgnored(t *testing.T) {
	got := ResolveFlags(map[string]Skill{}, []string{"nonexistent"}, RuntimeClaudeCode)
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
