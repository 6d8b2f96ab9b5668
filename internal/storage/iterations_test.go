package storage

import "testing"

func TestSaveIterationCount_RoundTrip(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.SaveIterationCount("s1", "task-a", 2); err != nil {
		t.Fatalf("SaveIterationCount: %v", err)
	}
	if err := svc.SaveIterationCount("s1", "task-b", 1); err != nil {
		t.Fatalf("SaveIterationCount: %v", err)
	}
	if err := svc.SaveIterationCount("s1", "task-a", 3); err != nil {
		t.Fatalf("SaveIterationCount overwrite: %v", err)
	}

	counts, err := svc.LoadIterationCounts()
	if err != nil {
		t.Fatalf("LoadIterationCounts: %v", err)
	}
	if got := counts[iterationKey("s1", "task-a")]; got != 3 {
		t.Errorf("task-a count = %d, want 3", got)
	}
	if got := counts[iterationKey("s1", "task-b")]; got != 1 {
		t.Errorf("task-b count = %d, want 1", got)
	}
}

func TestLoadIterationCounts_EmptyWhenMissing(t *testing.T) {
	svc := New(t.TempDir())
	counts, err := svc.LoadIterationCounts()
	if err != nil {
		t.Fatalf("LoadIterationCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("got %+v, want empty", counts)
	}
}
