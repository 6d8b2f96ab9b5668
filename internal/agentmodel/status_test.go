package agentmodel

import (
	"encoding/json"
	"testing"
)

func TestAgentStatus_StringAndParseRoundTrip(t *testing.T) {
	for _, s := range []AgentStatus{StatusInactive, StatusActivating, StatusStarted, StatusActive} {
		parsed, ok := ParseAgentStatus(s.String())
		if !ok || parsed != s {
			t.Errorf("round trip failed for %v: parsed=%v ok=%v", s, parsed, ok)
		}
	}
}

func TestAgentStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to AgentStatus
		want     bool
	}{
		{StatusInactive, StatusActivating, true},
		{StatusActivating, StatusStarted, true},
		{StatusStarted, StatusActive, true},
		{StatusInactive, StatusStarted, false},
		{StatusActivating, StatusActive, false},
		{StatusActive, StatusInactive, true},
		{StatusStarted, StatusInactive, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("%v -> %v = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestAgentStatus_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(StatusActive)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"active"` {
		t.Errorf("got %s, want %q", data, `"active"`)
	}
	var s AgentStatus
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StatusActive {
		t.Errorf("got %v, want StatusActive", s)
	}
}

func TestAgentStatus_UnmarshalRejectsUnknown(t *testing.T) {
	var s AgentStatus
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestWorkingStatus_JSONRoundTrip(t *testing.T) {
	data, _ := json.Marshal(WorkingBusy)
	if string(data) != `"busy"` {
		t.Errorf("got %s, want %q", data, `"busy"`)
	}
	var w WorkingStatus
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w != WorkingBusy {
		t.Errorf("got %v, want WorkingBusy", w)
	}
}

func TestRuntimeType_StringAndParseRoundTrip(t *testing.T) {
	for _, r := range []RuntimeType{RuntimeClaudeCode, RuntimeGeminiCLI, RuntimeCodexCLI} {
		parsed, ok := ParseRuntimeType(r.String())
		if !ok || parsed != r {
			t.Errorf("round trip failed for %v", r)
		}
	}
}

func TestRuntimeType_JSONRoundTrip(t *testing.T) {
	data, _ := json.Marshal(RuntimeGeminiCLI)
	if string(data) != `"gemini-cli"` {
		t.Errorf("got %s", data)
	}
	var r RuntimeType
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r != RuntimeGeminiCLI {
		t.Errorf("got %v, want gemini-cli", r)
	}
}

func TestRuntimeType_IsTUI(t *testing.T) {
	if RuntimeClaudeCode.IsTUI() {
		t.Error("expected claude-code to not be TUI")
	}
	if !RuntimeGeminiCLI.IsTUI() || !RuntimeCodexCLI.IsTUI() {
		t.Error("expected gemini-cli and codex-cli to be TUI")
	}
}
