// Package layer models the selectable video renditions of a stream and the
// request/response protocol for switching between them.
package layer

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Descriptor identifies one encoded rendition.
type Descriptor struct {
	RID    string `json:"rid"`
	Label  string `json:"label"`
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
}

func (d Descriptor) String() string {
	if d.Width > 0 && d.Height > 0 {
		return fmt.Sprintf("%s (%dx%d)", d.Label, d.Width, d.Height)
	}
	return d.Label
}

var labels = map[string]string{
	"l": "Low",
	"m": "Medium",
	"h": "High",
}

// Label is the human name for a simulcast rid.
func Label(rid string) string {
	if l, ok := labels[rid]; ok {
		return l
	}
	return "Unknown"
}

// Standard returns the low/medium/high ladder most publishers simulcast.
func Standard() []Descriptor {
	return []Descriptor{
		{RID: "l", Label: "Low", Width: 320, Height: 180},
		{RID: "m", Label: "Medium", Width: 640, Height: 360},
		{RID: "h", Label: "High", Width: 1280, Height: 720},
	}
}

// IndexOf returns the position of rid in layers, or -1.
func IndexOf(layers []Descriptor, rid string) int {
	_, idx, ok := lo.FindIndexOf(layers, func(d Descriptor) bool { return d.RID == rid })
	if !ok {
		return -1
	}
	return idx
}

// SwitchKind is the position of the switch state machine.
type SwitchKind int

const (
	Idle SwitchKind = iota
	Pending
	Succeeded
	Failed
)

var kindNames = map[SwitchKind]string{
	Idle:      "idle",
	Pending:   "pending",
	Succeeded: "succeeded",
	Failed:    "failed",
}

var kindFromName = map[string]SwitchKind{
	"idle":      Idle,
	"pending":   Pending,
	"succeeded": Succeeded,
	"failed":    Failed,
}

func (k SwitchKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k SwitchKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *SwitchKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// SwitchState is one state of the switch protocol. Target and Token are set
// for Pending and for the resolved states; Reason only for Failed.
type SwitchState struct {
	Kind   SwitchKind  `json:"kind"`
	Target *Descriptor `json:"target,omitempty"`
	Token  string      `json:"token,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

func (s SwitchState) clone() SwitchState {
	if s.Target != nil {
		t := *s.Target
		s.Target = &t
	}
	return s
}

// Request is an issued switch that the engine must be told about.
type Request struct {
	Token string     `json:"token"`
	Index int        `json:"index"`
	Layer Descriptor `json:"layer"`
}
