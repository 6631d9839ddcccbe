package player

import (
	"time"

	"github.com/samber/mo"

	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/session"
	"github.com/auroralive/player-telemetry/internal/stats"
)

// ErrorInfo is one surfaced error. Seq is unique across the dispatcher's
// lifetime and identifies the entry for ClearLayerError.
type ErrorInfo struct {
	Message string    `json:"message"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
}

// ErrorState holds the user-visible errors. Connection is fatal and sticks
// until Close or Play; Layer is transient.
type ErrorState struct {
	Connection mo.Option[ErrorInfo] `json:"connection"`
	Layer      mo.Option[ErrorInfo] `json:"layer"`
}

// Snapshot is an immutable, versioned view of the session. A new one is
// built after every committed mutation; published snapshots are never
// modified, so consumers must treat the Layers slice as read-only or Clone.
type Snapshot struct {
	Version      uint64             `json:"version"`
	Generation   uint64             `json:"generation"`
	Phase        session.Phase      `json:"phase"`
	PlaybackID   string             `json:"playbackId,omitempty"`
	ElapsedMs    int64              `json:"elapsedMs"`
	Milestones   session.Milestones `json:"milestones"`
	Metrics      stats.Metrics      `json:"metrics"`
	Layers       []layer.Descriptor `json:"layers"`
	Current      *layer.Descriptor  `json:"current,omitempty"`
	CurrentIndex int                `json:"currentIndex"`
	Switch       layer.SwitchState  `json:"switch"`
	LastSwitch   layer.SwitchState  `json:"lastSwitch"`
	Errors       ErrorState         `json:"errors"`
	Rendering    bool               `json:"rendering"`
	PublishedAt  time.Time          `json:"publishedAt"`
}

// Clone returns a deep copy that can be modified freely.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Layers = append([]layer.Descriptor(nil), s.Layers...)
	if s.Current != nil {
		cur := *s.Current
		c.Current = &cur
	}
	if s.Switch.Target != nil {
		t := *s.Switch.Target
		c.Switch.Target = &t
	}
	if s.LastSwitch.Target != nil {
		t := *s.LastSwitch.Target
		c.LastSwitch.Target = &t
	}
	return c
}

// Loading is true while a session is running but nothing is on screen yet.
func (s Snapshot) Loading() bool {
	return s.Phase.Active() && !s.Rendering
}

// AsOf returns s with ElapsedMs measured up to now. Snapshots of a session
// that is not running are returned unchanged.
func (s Snapshot) AsOf(now time.Time) Snapshot {
	start, ok := s.Milestones.SessionStart.Get()
	if !ok || !s.Phase.Active() || now.Before(start) {
		return s
	}
	s.ElapsedMs = now.Sub(start).Milliseconds()
	return s
}
