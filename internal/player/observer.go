package player

import "github.com/auroralive/player-telemetry/internal/layer"

// Observer receives dispatcher diagnostics. Calls happen inside the
// dispatcher's critical section and must return quickly.
type Observer interface {
	EventApplied(kind EventKind)
	EventDropped(kind EventKind)
	SnapshotPublished(s Snapshot)
	LayerSwitchResolved(outcome layer.SwitchState)
}

type nopObserver struct{}

func (nopObserver) EventApplied(EventKind)                {}
func (nopObserver) EventDropped(EventKind)                {}
func (nopObserver) SnapshotPublished(Snapshot)            {}
func (nopObserver) LayerSwitchResolved(layer.SwitchState) {}
