package continuation

import (
	"testing"
	"time"
)

func TestHeartbeatWatchdog_FiresWhenStale(t *testing.T) {
	now := time.Now()
	last := now.Add(-StaleHeartbeatAfter - time.Second)
	var events []Event
	w := NewHeartbeatWatchdog(func() time.Time { return last },
		func(e Event) { events = append(events, e) }, "s1", "agent-1", "/p", time.Second)

	w.Tick(now)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Trigger != TriggerHeartbeatStale {
		t.Errorf("Trigger = %v, want heartbeat_stale", events[0].Trigger)
	}

	// Still stale on the next tick: no refire.
	w.Tick(now.Add(time.Second))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (no refire while still stale)", len(events))
	}
}

func TestHeartbeatWatchdog_FreshHeartbeatRearms(t *testing.T) {
	now := time.Now()
	last := now.Add(-StaleHeartbeatAfter - time.Second)
	var events []Event
	w := NewHeartbeatWatchdog(func() time.Time { return last },
		func(e Event) { events = append(events, e) }, "s1", "", "", time.Second)

	w.Tick(now)
	last = now // agent called back
	w.Tick(now.Add(time.Second))
	last = now.Add(-StaleHeartbeatAfter * 2)
	w.Tick(now.Add(2 * time.Second))
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (stale, fresh, stale again)", len(events))
	}
}

func TestHeartbeatWatchdog_ZeroTimeNeverStale(t *testing.T) {
	w := NewHeartbeatWatchdog(func() time.Time { return time.Time{} },
		func(Event) { t.Fatal("unexpected event") }, "s1", "", "", time.Second)
	w.Tick(time.Now())
}
