package continuation

import (
	"testing"
	"time"
)

func TestAnalyze_PTYExitIsStuckOrErrorNotifyOwner(t *testing.T) {
	a := NewAnalyzer(nil, 0, 0)
	got := a.Analyze(Event{Trigger: TriggerPTYExit, SessionName: "s1"}, "", "")
	if got.Conclusion != ConclusionStuckOrError {
		t.Errorf("Conclusion = %v, want STUCK_OR_ERROR", got.Conclusion)
	}
	if got.Action != ActionNotifyOwner {
		t.Errorf("Action = %v, want notify_owner", got.Action)
	}
}

func TestAnalyze_CompletionPhraseAssignsNextTask(t *testing.T) {
	a := NewAnalyzer(nil, 0, 0)
	got := a.Analyze(Event{Trigger: TriggerActivityIdle, SessionName: "s1"}, "All tests passing. Task complete.", "")
	if got.Conclusion != ConclusionTaskComplete {
		t.Errorf("Conclusion = %v, want TASK_COMPLETE", got.Conclusion)
	}
	if got.Action != ActionAssignNextTask {
		t.Errorf("Action = %v, want assign_next_task", got.Action)
	}
}

func TestAnalyze_EmptyPromptIsWaitingInput(t *testing.T) {
	a := NewAnalyzer(nil, 0, 0)
	got := a.Analyze(Event{Trigger: TriggerActivityIdle, SessionName: "s1"}, "❯", "")
	if got.Conclusion != ConclusionWaitingInput {
		t.Errorf("Conclusion = %v, want WAITING_INPUT", got.Conclusion)
	}
	if got.Action != ActionInjectPrompt {
		t.Errorf("Action = %v, want inject_prompt", got.Action)
	}
}

func TestAnalyze_ErrorKeywordIsStuckOrError(t *testing.T) {
	a := NewAnalyzer(nil, 0, 0)
	got := a.Analyze(Event{Trigger: TriggerExplicit, SessionName: "s1"}, "panic: runtime error: nil pointer", "")
	if got.Conclusion != ConclusionStuckOrError {
		t.Errorf("Conclusion = %v, want STUCK_OR_ERROR", got.Conclusion)
	}
}

func TestIterationTracker_EnforcesCap(t *testing.T) {
	tracker := NewIterationTracker(2)
	a := NewAnalyzer(tracker, 0, 0)

	event := Event{Trigger: TriggerActivityIdle, SessionName: "s1"}
	pane := "panic: boom" // classifies as retry_with_hints, not no_action, so it counts

	first := a.Analyze(event, pane, "task-1")
	if first.Conclusion == ConclusionMaxIterations {
		t.Fatal("should not hit max on first iteration")
	}
	second := a.Analyze(event, pane, "task-1")
	if second.Conclusion == ConclusionMaxIterations {
		t.Fatal("should not hit max on second iteration (== cap, not over)")
	}
	third := a.Analyze(event, pane, "task-1")
	if third.Conclusion != ConclusionMaxIterations {
		t.Errorf("expected MAX_ITERATIONS on the 3rd iteration past a cap of 2, got %v", third.Conclusion)
	}
	if third.Action != ActionNotifyOwner {
		t.Errorf("Action = %v, want notify_owner", third.Action)
	}
}

func TestIterationTracker_ResetClearsCount(t *testing.T) {
	tracker := NewIterationTracker(1)
	tracker.Increment("s1", "t1")
	tracker.Reset("s1", "t1")
	if got := tracker.Count("s1", "t1"); got != 0 {
		t.Errorf("Count after Reset = %d, want 0", got)
	}
}

func TestIterationTracker_PersistCalledOnIncrement(t *testing.T) {
	var lastCount int
	tracker := NewIterationTracker(5)
	tracker.Persist = func(session, task string, count int) { lastCount = count }
	tracker.Increment("s1", "t1")
	tracker.Increment("s1", "t1")
	if lastCount != 2 {
		t.Errorf("lastCount = %d, want 2", lastCount)
	}
}

func TestAnalyzer_DefaultsApplied(t *testing.T) {
	a := NewAnalyzer(nil, 0, 0)
	if a.IdleCycles() != 3 {
		t.Errorf("IdleCycles = %d, want 3", a.IdleCycles())
	}
	if a.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", a.PollInterval())
	}
}
