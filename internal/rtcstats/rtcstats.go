// Package rtcstats reads WebRTC statistics reports into the aggregator's raw
// counter form.
package rtcstats

import (
	"math"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/auroralive/player-telemetry/internal/stats"
)

// StatsGetter is satisfied by *webrtc.PeerConnection.
type StatsGetter interface {
	GetStats() webrtc.StatsReport
}

// StatsGetterFunc adapts a function to StatsGetter.
type StatsGetterFunc func() webrtc.StatsReport

func (f StatsGetterFunc) GetStats() webrtc.StatsReport { return f() }

// Summary is a converted report plus the video decode counters needed to
// derive a frame rate across two reports.
type Summary struct {
	Raw           stats.Raw
	FramesDecoded uint64
	VideoAt       time.Time
}

// Summarize folds every inbound-rtp entry of report into one Raw sample,
// split by kind, and takes the round-trip time from the nominated candidate
// pair. Several video entries (simulcast receivers) are summed.
func Summarize(report webrtc.StatsReport) Summary {
	var sum Summary
	for _, s := range report {
		switch v := s.(type) {
		case webrtc.InboundRTPStreamStats:
			addInbound(&sum, v)
		case webrtc.ICECandidatePairStats:
			if v.Nominated && v.CurrentRoundTripTime > 0 {
				sum.Raw.RoundTripTime = seconds(v.CurrentRoundTripTime)
			}
		}
	}
	return sum
}

func addInbound(sum *Summary, in webrtc.InboundRTPStreamStats) {
	raw := &sum.Raw
	lost := uint64(0)
	if in.PacketsLost > 0 {
		lost = uint64(in.PacketsLost)
	}

	if in.Kind == "audio" {
		raw.AudioBytesReceived += in.BytesReceived
		raw.AudioPacketsReceived += uint64(in.PacketsReceived)
		raw.AudioPacketsLost += lost
		return
	}

	raw.VideoBytesReceived += in.BytesReceived
	raw.VideoPacketsReceived += uint64(in.PacketsReceived)
	raw.VideoPacketsLost += lost
	raw.KeyFrames += uint64(in.KeyFramesDecoded)
	raw.PLICount += uint64(in.PLICount)
	raw.NACKCount += uint64(in.NACKCount)
	if in.FrameWidth > raw.Width {
		raw.Width = in.FrameWidth
		raw.Height = in.FrameHeight
	}
	if in.JitterBufferEmittedCount > 0 {
		raw.JitterBufferDelay = seconds(in.JitterBufferDelay / float64(in.JitterBufferEmittedCount))
	}
	if in.LastPacketReceivedTimestamp > 0 {
		if at := in.LastPacketReceivedTimestamp.Time(); at.After(raw.LastPacketReceivedAt) {
			raw.LastPacketReceivedAt = at
		}
	}

	sum.FramesDecoded += uint64(in.FramesDecoded)
	if ts := in.Timestamp.Time(); ts.After(sum.VideoAt) {
		sum.VideoAt = ts
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
