package terminal

import "testing"

func TestIsAtPrompt_PromptShapes(t *testing.T) {
	cases := []struct {
		pane string
		want bool
	}{
		{"some output\n❯", true},
		{"some output\n> ", true},
		{"some output\n❯❯ continue", true},
		{"shell mode\n! ls -la", true},
		{"$", true},
		{"still thinking...", false},
		{"", false},
		{"│ ❯ │", true}, // border-stripped first
	}
	for _, c := range cases {
		got := IsAtPrompt(c.pane)
		if got != c.want {
			t.Errorf("IsAtPrompt(%q) = %v, want %v", c.pane, got, c.want)
		}
	}
}

func TestIsShellModePrompt(t *testing.T) {
	if !IsShellModePrompt("output\n! search foo") {
		t.Error("expected shell-mode prompt to be detected")
	}
	if IsShellModePrompt("output\n❯") {
		t.Error("did not expect shell-mode prompt")
	}
}

func TestStuckToken(t *testing.T) {
	got := StuckToken("[CHAT:abc123] hello team, please review this very long message body")
	want := "hello team, please review this very long"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStuckToken_ShortMessage(t *testing.T) {
	got := StuckToken("hi")
	if got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func TestIsStuck_TokenVisibleInTail(t *testing.T) {
	msg := "[CHAT:abc] hello team"
	token := StuckToken(msg)
	pane := "line1\nline2\nhello team\nline4"
	if !IsStuck(pane, token) {
		t.Fatalf("expected IsStuck to find token %q in pane", token)
	}
	// Confirm the inverse: if the token is absent, IsStuck is false.
	if IsStuck("completely different output", token) {
		t.Fatal("expected IsStuck to be false when token absent")
	}
}

func TestHasProcessingIndicator(t *testing.T) {
	if !HasProcessingIndicator("Thinking...") {
		t.Error("expected processing indicator match")
	}
	if HasProcessingIndicator("done") {
		t.Error("did not expect a match")
	}
}
