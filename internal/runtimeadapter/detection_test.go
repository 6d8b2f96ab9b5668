package runtimeadapter

import (
	"testing"
	"time"
)

func withFixedNow(t *testing.T, start time.Time) func(advance time.Duration) {
	t.Helper()
	cur := start
	orig := Now
	Now = func() time.Time { return cur }
	t.Cleanup(func() { Now = orig })
	return func(advance time.Duration) { cur = cur.Add(advance) }
}

func TestDetectionCache_FreshThenExpires(t *testing.T) {
	advance := withFixedNow(t, time.Unix(0, 0))
	c := NewDetectionCache(1 * time.Second)

	if _, fresh := c.Get("s1"); fresh {
		t.Fatal("expected no cached entry initially")
	}
	c.Set("s1", true)
	result, fresh := c.Get("s1")
	if !fresh || !result {
		t.Fatalf("expected fresh true, got result=%v fresh=%v", result, fresh)
	}

	advance(2 * time.Second)
	if _, fresh := c.Get("s1"); fresh {
		t.Fatal("expected entry to have expired")
	}
}

func TestDetectionCache_Clear(t *testing.T) {
	c := NewDetectionCache(time.Minute)
	c.Set("s1", true)
	c.Clear("s1")
	if _, fresh := c.Get("s1"); fresh {
		t.Fatal("expected cleared entry to be gone")
	}
}

func TestBuildLaunchCommand_AppendsAndQuotesFlags(t *testing.T) {
	got, err := BuildLaunchCommand("claude --model opus", []string{"--flag", "value with spaces"})
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	want := "claude --model opus --flag 'value with spaces'"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildLaunchCommand_NoFlags(t *testing.T) {
	got, err := BuildLaunchCommand("gemini", nil)
	if err != nil {
		t.Fatalf("BuildLaunchCommand: %v", err)
	}
	if got != "gemini" {
		t.Errorf("got %q, want %q", got, "gemini")
	}
}
