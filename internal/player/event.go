package player

import (
	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/stats"
)

// EventKind classifies inbound notifications.
type EventKind int

const (
	KindConnectSuccess EventKind = iota
	KindConnectError
	KindStats
	KindLayerSwitchSuccess
	KindLayerSwitchFailure
	KindRenderState
)

var kindNames = map[EventKind]string{
	KindConnectSuccess:     "connect_success",
	KindConnectError:       "connect_error",
	KindStats:              "stats",
	KindLayerSwitchSuccess: "layer_switch_success",
	KindLayerSwitchFailure: "layer_switch_failure",
	KindRenderState:        "render_state",
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is one notification from the engine or the render surface, stamped
// with the generation of the session it belongs to.
type Event interface {
	Kind() EventKind
	Stamp() uint64
}

// Header carries the session generation an event was issued under.
type Header struct {
	Generation uint64
}

func (h Header) Stamp() uint64 { return h.Generation }

type ConnectSuccess struct {
	Header
	Layers  []layer.Descriptor
	Current int
}

type ConnectError struct {
	Header
	Err error
}

type StatsSample struct {
	Header
	Raw stats.Raw
}

type LayerSwitchSuccess struct {
	Header
	Token string
}

type LayerSwitchFailure struct {
	Header
	Token string
	Err   error
}

type RenderStateChanged struct {
	Header
	Rendering bool
}

func (ConnectSuccess) Kind() EventKind     { return KindConnectSuccess }
func (ConnectError) Kind() EventKind       { return KindConnectError }
func (StatsSample) Kind() EventKind        { return KindStats }
func (LayerSwitchSuccess) Kind() EventKind { return KindLayerSwitchSuccess }
func (LayerSwitchFailure) Kind() EventKind { return KindLayerSwitchFailure }
func (RenderStateChanged) Kind() EventKind { return KindRenderState }
