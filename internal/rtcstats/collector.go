package rtcstats

import (
	"sync"
	"time"

	"github.com/auroralive/player-telemetry/internal/stats"
)

// Collector pulls reports from a peer connection and fills in the frame rate,
// which WebRTC only exposes as a cumulative decode counter.
type Collector struct {
	source StatsGetter

	mu         sync.Mutex
	prevFrames uint64
	prevAt     time.Time
}

func NewCollector(source StatsGetter) *Collector {
	return &Collector{source: source}
}

// Collect reads one report and converts it.
func (c *Collector) Collect() stats.Raw {
	sum := Summarize(c.source.GetStats())

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.prevAt.IsZero() && sum.VideoAt.After(c.prevAt) && sum.FramesDecoded >= c.prevFrames {
		elapsed := sum.VideoAt.Sub(c.prevAt).Seconds()
		sum.Raw.FrameRate = float64(sum.FramesDecoded-c.prevFrames) / elapsed
	}
	c.prevFrames = sum.FramesDecoded
	c.prevAt = sum.VideoAt
	return sum.Raw
}

// Reset forgets the previous report, e.g. when a new connection starts.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prevFrames = 0
	c.prevAt = time.Time{}
}
