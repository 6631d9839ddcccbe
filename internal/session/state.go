package session

import (
	"encoding/json"
	"time"

	"github.com/samber/mo"
)

// Phase is the lifecycle position of the active playback session.
type Phase int

const (
	Stopped    Phase = iota // no session, or the last one was closed
	Connecting              // Play issued, no connect outcome yet
	Connected               // engine reported a successful connect
	Failed                  // connection error; terminal until Close or Play
)

var phaseNames = map[Phase]string{
	Stopped:    "stopped",
	Connecting: "connecting",
	Connected:  "connected",
	Failed:     "failed",
}

var phaseFromName = map[string]Phase{
	"stopped":    Stopped,
	"connecting": Connecting,
	"connected":  Connected,
	"failed":     Failed,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := phaseFromName[s]; ok {
		*p = v
	}
	return nil
}

// Active reports whether events from the engine are still meaningful.
func (p Phase) Active() bool {
	return p == Connecting || p == Connected
}

// Milestones are wall-clock timestamps anchored to a session start. Each one
// is recorded at most once per generation.
type Milestones struct {
	SessionStart   mo.Option[time.Time] `json:"sessionStart"`
	ConnectSuccess mo.Option[time.Time] `json:"connectSuccess"`
	FirstFrame     mo.Option[time.Time] `json:"firstFrame"`
}

// TimeToConnect is the delay between session start and the first successful
// connect, if both are known.
func (m Milestones) TimeToConnect() mo.Option[time.Duration] {
	return between(m.SessionStart, m.ConnectSuccess)
}

// TimeToFirstFrame is the delay between session start and the first rendered
// frame, if both are known.
func (m Milestones) TimeToFirstFrame() mo.Option[time.Duration] {
	return between(m.SessionStart, m.FirstFrame)
}

func between(from, to mo.Option[time.Time]) mo.Option[time.Duration] {
	start, ok := from.Get()
	if !ok {
		return mo.None[time.Duration]()
	}
	end, ok := to.Get()
	if !ok {
		return mo.None[time.Duration]()
	}
	return mo.Some(end.Sub(start))
}
