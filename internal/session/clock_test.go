package session

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestClockBeforeStart(t *testing.T) {
	c := NewClock(clocktesting.NewFakePassiveClock(epoch))

	if c.Generation() != 0 {
		t.Errorf("Generation() = %d, want 0", c.Generation())
	}
	if c.ElapsedMs() != 0 {
		t.Errorf("ElapsedMs() before Start = %d, want 0", c.ElapsedMs())
	}
	if c.MarkConnected() {
		t.Error("MarkConnected() recorded without a running session")
	}
	if c.Milestones().SessionStart.IsPresent() {
		t.Error("SessionStart set before Start")
	}
}

func TestClockElapsed(t *testing.T) {
	fake := clocktesting.NewFakePassiveClock(epoch)
	c := NewClock(fake)

	if gen := c.Start(); gen != 1 {
		t.Fatalf("Start() = %d, want 1", gen)
	}
	fake.SetTime(epoch.Add(1500 * time.Millisecond))

	if got := c.ElapsedMs(); got != 1500 {
		t.Errorf("ElapsedMs() = %d, want 1500", got)
	}
	if start, ok := c.Milestones().SessionStart.Get(); !ok || !start.Equal(epoch) {
		t.Errorf("SessionStart = %v, %v; want %v", start, ok, epoch)
	}
}

func TestClockMilestonesFirstWriteWins(t *testing.T) {
	fake := clocktesting.NewFakePassiveClock(epoch)
	c := NewClock(fake)
	c.Start()

	fake.SetTime(epoch.Add(time.Second))
	if !c.MarkConnected() {
		t.Fatal("first MarkConnected() did not record")
	}
	fake.SetTime(epoch.Add(5 * time.Second))
	if c.MarkConnected() {
		t.Error("second MarkConnected() recorded")
	}

	got, _ := c.Milestones().ConnectSuccess.Get()
	if !got.Equal(epoch.Add(time.Second)) {
		t.Errorf("ConnectSuccess = %v, want %v", got, epoch.Add(time.Second))
	}

	if !c.MarkFirstFrame() || c.MarkFirstFrame() {
		t.Error("MarkFirstFrame() should record exactly once")
	}
}

func TestClockStartClearsMilestones(t *testing.T) {
	fake := clocktesting.NewFakePassiveClock(epoch)
	c := NewClock(fake)
	c.Start()
	c.MarkConnected()
	c.MarkFirstFrame()

	fake.SetTime(epoch.Add(time.Minute))
	if gen := c.Start(); gen != 2 {
		t.Fatalf("second Start() = %d, want 2", gen)
	}

	m := c.Milestones()
	if m.ConnectSuccess.IsPresent() || m.FirstFrame.IsPresent() {
		t.Errorf("milestones survived a restart: %+v", m)
	}
	if !c.MarkConnected() {
		t.Error("MarkConnected() should record again in the new session")
	}
}

func TestClockEnd(t *testing.T) {
	c := NewClock(clocktesting.NewFakePassiveClock(epoch))
	c.Start()
	c.MarkConnected()

	if gen := c.End(); gen != 2 {
		t.Errorf("End() = %d, want 2", gen)
	}
	if c.Running() {
		t.Error("Running() after End")
	}
	if c.Milestones().SessionStart.IsPresent() || c.Milestones().ConnectSuccess.IsPresent() {
		t.Error("End did not clear milestones")
	}
	if c.MarkFirstFrame() {
		t.Error("MarkFirstFrame() recorded after End")
	}
}
