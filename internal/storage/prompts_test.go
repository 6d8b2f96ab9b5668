package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemberPrompt_SaveAndGet(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.SaveMemberPrompt("t1", "m1", "you are a backend engineer"); err != nil {
		t.Fatalf("SaveMemberPrompt: %v", err)
	}
	got, err := svc.GetMemberPrompt("t1", "m1")
	if err != nil {
		t.Fatalf("GetMemberPrompt: %v", err)
	}
	if got != "you are a backend engineer" {
		t.Errorf("got %q", got)
	}
}

func TestGetMemberPrompt_NotFoundWhenMissing(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.GetMemberPrompt("t1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrchestratorPrompt_SaveAndGet(t *testing.T) {
	svc := New(t.TempDir())
	if err := writeJSONAtomic(svc.OrchestratorPromptPath(), []byte("you orchestrate the team")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := svc.GetOrchestratorPrompt()
	if err != nil {
		t.Fatalf("GetOrchestratorPrompt: %v", err)
	}
	if got != "you orchestrate the team" {
		t.Errorf("got %q", got)
	}
}

func TestRegistrationPromptPath_UnderAgentmuxHome(t *testing.T) {
	svc := New("/home/user/.agentmux")
	got := svc.RegistrationPromptPath("sess-1")
	want := filepath.Join("/home/user/.agentmux", "prompts", "sess-1-init.md")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestProjectRegistrationPromptPath_UnderProjectDotAgentmux(t *testing.T) {
	got := ProjectRegistrationPromptPath("/work/proj", "sess-1")
	want := filepath.Join("/work/proj", ".agentmux", "prompts", "sess-1-init.md")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestWriteRegistrationPrompt_WritesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".agentmux", "prompts", "sess-1-init.md")
	if err := WriteRegistrationPrompt(path, "register now"); err != nil {
		t.Fatalf("WriteRegistrationPrompt: %v", err)
	}
	svc := New(dir)
	_ = svc
	data, err := readPromptFileForTest(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data != "register now" {
		t.Errorf("got %q", data)
	}
}

func readPromptFileForTest(path string) (string, error) {
	svc := &Service{}
	return svc.readPromptFile(path)
}

func TestLoadTemplate_FallsBackToDefaultWhenRoleFileMissing(t *testing.T) {
	svc := New(t.TempDir())
	tmpl, err := svc.LoadTemplate("developer")
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if !strings.Contains(tmpl, "developer agent") || !strings.Contains(tmpl, "{{SESSION_ID}}") {
		t.Errorf("default template missing expected placeholders: %q", tmpl)
	}
}

func TestLoadTemplate_PrefersRoleSpecificFile(t *testing.T) {
	svc := New(t.TempDir())
	if err := writeJSONAtomic(svc.RegistrationTemplatePath("developer"), []byte("custom template {{SESSION_ID}}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmpl, err := svc.LoadTemplate("developer")
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if tmpl != "custom template {{SESSION_ID}}" {
		t.Errorf("got %q", tmpl)
	}
}
