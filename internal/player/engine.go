package player

import (
	"github.com/samber/mo"

	"github.com/auroralive/player-telemetry/internal/layer"
)

// PlayRequest names the stream to play and the optional viewer token.
type PlayRequest struct {
	PlaybackID string
	Token      mo.Option[string]
}

// NewPlayRequest treats an empty token as no token.
func NewPlayRequest(playbackID, token string) PlayRequest {
	req := PlayRequest{PlaybackID: playbackID, Token: mo.None[string]()}
	if token != "" {
		req.Token = mo.Some(token)
	}
	return req
}

// Engine is the media player the dispatcher drives. Every method is fire and
// forget: results come back later through the Sink handed to Play.
// Implementations must not call back into the Dispatcher's command methods
// (Play, Close, RequestLayerSwitch) from inside these calls.
type Engine interface {
	Play(req PlayRequest, sink *Sink)
	Close()
	SelectLayer(req layer.Request)
	RequestStats()
}
