package player

import (
	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/stats"
)

// Sink is the callback surface for one session. The engine and the render
// surface may call it from any goroutine; every call is stamped with the
// session's generation, so calls made after the session was closed or
// replaced are dropped by the dispatcher.
type Sink struct {
	d   *Dispatcher
	gen uint64
}

func (s *Sink) Generation() uint64 { return s.gen }

func (s *Sink) ConnectSucceeded(layers []layer.Descriptor, current int) {
	s.d.Dispatch(ConnectSuccess{
		Header:  Header{s.gen},
		Layers:  append([]layer.Descriptor(nil), layers...),
		Current: current,
	})
}

func (s *Sink) ConnectFailed(err error) {
	s.d.Dispatch(ConnectError{Header: Header{s.gen}, Err: err})
}

func (s *Sink) Stats(raw stats.Raw) {
	s.d.Dispatch(StatsSample{Header: Header{s.gen}, Raw: raw})
}

func (s *Sink) LayerSwitchSucceeded(token string) {
	s.d.Dispatch(LayerSwitchSuccess{Header: Header{s.gen}, Token: token})
}

func (s *Sink) LayerSwitchFailed(token string, err error) {
	s.d.Dispatch(LayerSwitchFailure{Header: Header{s.gen}, Token: token, Err: err})
}

func (s *Sink) RenderStateChanged(rendering bool) {
	s.d.Dispatch(RenderStateChanged{Header: Header{s.gen}, Rendering: rendering})
}
