package session

import (
	"time"

	"github.com/samber/mo"
	"k8s.io/utils/clock"
)

// Clock anchors milestones to the start of the current session and owns the
// generation counter that identifies it. Clock is not safe for concurrent use;
// the dispatcher guards it.
type Clock struct {
	clock      clock.PassiveClock
	generation uint64
	running    bool
	startedAt  time.Time
	milestones Milestones
}

// NewClock returns a stopped Clock at generation 0. A nil source means wall
// time.
func NewClock(source clock.PassiveClock) *Clock {
	if source == nil {
		source = clock.RealClock{}
	}
	return &Clock{clock: source}
}

// Start begins a new session and returns its generation.
func (c *Clock) Start() uint64 {
	c.generation++
	c.running = true
	c.startedAt = c.clock.Now()
	c.milestones = Milestones{SessionStart: mo.Some(c.startedAt)}
	return c.generation
}

// End retires the current session. The generation still advances so that
// anything stamped with the old one is recognisably stale.
func (c *Clock) End() uint64 {
	c.generation++
	c.running = false
	c.startedAt = time.Time{}
	c.milestones = Milestones{}
	return c.generation
}

func (c *Clock) Generation() uint64 { return c.generation }

func (c *Clock) Running() bool { return c.running }

// Elapsed is the time since Start, or zero when no session is running.
func (c *Clock) Elapsed() time.Duration {
	if !c.running {
		return 0
	}
	return c.clock.Since(c.startedAt)
}

func (c *Clock) ElapsedMs() int64 {
	return c.Elapsed().Milliseconds()
}

// MarkConnected records the first successful connect of this session and
// reports whether it did. Later calls in the same session are no-ops.
func (c *Clock) MarkConnected() bool {
	return c.mark(&c.milestones.ConnectSuccess)
}

// MarkFirstFrame records the first rendered frame of this session.
func (c *Clock) MarkFirstFrame() bool {
	return c.mark(&c.milestones.FirstFrame)
}

func (c *Clock) mark(slot *mo.Option[time.Time]) bool {
	if !c.running || slot.IsPresent() {
		return false
	}
	*slot = mo.Some(c.clock.Now())
	return true
}

// Milestones returns a copy of the current session's milestones.
func (c *Clock) Milestones() Milestones {
	return c.milestones
}
