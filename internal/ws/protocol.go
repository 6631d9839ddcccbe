package ws

import (
	"github.com/auroralive/player-telemetry/internal/monitor"
	"github.com/auroralive/player-telemetry/internal/notify"
	"github.com/auroralive/player-telemetry/internal/player"
)

type MessageType string

const (
	MsgSnapshot     MessageType = "snapshot"
	MsgNotification MessageType = "notification"
	MsgDismiss      MessageType = "dismiss"
	MsgHealth       MessageType = "health"
	MsgError        MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Snapshot player.Snapshot `json:"snapshot"`
	Loading  bool            `json:"loading"`
}

func newSnapshotMessage(s player.Snapshot) WSMessage {
	return WSMessage{Type: MsgSnapshot, Payload: SnapshotPayload{Snapshot: s, Loading: s.Loading()}}
}

type DismissPayload struct {
	Kind notify.Kind `json:"kind"`
	Seq  uint64      `json:"seq"`
}

type HealthPayload struct {
	Status monitor.Status `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// LayerRequest selects a layer by index or, when RID is set, by rid.
type LayerRequest struct {
	Index *int   `json:"index,omitempty"`
	RID   string `json:"rid,omitempty"`
}

type PlayRequest struct {
	PlaybackID string `json:"playbackId"`
	Token      string `json:"token,omitempty"`
}
