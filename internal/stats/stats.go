// Package stats turns the engine's cumulative counters into per-interval
// metrics.
package stats

import "time"

// Raw is one cumulative statistics sample as reported by the engine. Counters
// only grow within a session.
type Raw struct {
	AudioBytesReceived   uint64        `json:"audioBytesReceived"`
	VideoBytesReceived   uint64        `json:"videoBytesReceived"`
	AudioPacketsReceived uint64        `json:"audioPacketsReceived"`
	VideoPacketsReceived uint64        `json:"videoPacketsReceived"`
	AudioPacketsLost     uint64        `json:"audioPacketsLost"`
	VideoPacketsLost     uint64        `json:"videoPacketsLost"`
	Width                uint32        `json:"width"`
	Height               uint32        `json:"height"`
	FrameRate            float64       `json:"frameRate"`
	JitterBufferDelay    time.Duration `json:"jitterBufferDelay"`
	KeyFrames            uint64        `json:"keyFrames"`
	PLICount             uint64        `json:"pliCount"`
	NACKCount            uint64        `json:"nackCount"`
	FreezeCount          uint64        `json:"freezeCount"`
	FreezeDuration       time.Duration `json:"freezeDuration"`
	RoundTripTime        time.Duration `json:"roundTripTime"`
	LastPacketReceivedAt time.Time     `json:"lastPacketReceivedAt"`
}

// Metrics is what a display needs from one sample: the derived rate plus the
// counters it shows as-is.
type Metrics struct {
	BitrateKbps          uint64        `json:"bitrateKbps"`
	PacketCount          uint64        `json:"packetCount"`
	PacketsLost          uint64        `json:"packetsLost"`
	VideoPacketsLost     uint64        `json:"videoPacketsLost"`
	VideoBytesReceived   uint64        `json:"videoBytesReceived"`
	AudioBytesReceived   uint64        `json:"audioBytesReceived"`
	Width                uint32        `json:"width"`
	Height               uint32        `json:"height"`
	FrameRate            float64       `json:"frameRate"`
	JitterBufferDelay    time.Duration `json:"jitterBufferDelay"`
	KeyFrames            uint64        `json:"keyFrames"`
	PLICount             uint64        `json:"pliCount"`
	NACKCount            uint64        `json:"nackCount"`
	FreezeCount          uint64        `json:"freezeCount"`
	FreezeDuration       time.Duration `json:"freezeDuration"`
	RoundTripTime        time.Duration `json:"roundTripTime"`
	LastPacketReceivedAt time.Time     `json:"lastPacketReceivedAt"`
	Samples              int           `json:"samples"`
}

// Aggregator keeps the per-session rate baseline. The sampling cadence is
// owned by whoever calls Ingest (nominally once a second), so the bitrate is
// bytes per sample interval scaled to kb. Aggregator is not safe for
// concurrent use.
type Aggregator struct {
	baseline    uint64
	hasBaseline bool
	samples     int
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Ingest derives Metrics from raw. The first sample after a reset has nothing
// to compare against and reports a zero bitrate; a counter that went
// backwards (engine reconnect) also reports zero and re-anchors the baseline.
func (a *Aggregator) Ingest(raw Raw) Metrics {
	var kbps uint64
	if a.hasBaseline && raw.VideoBytesReceived >= a.baseline {
		kbps = (raw.VideoBytesReceived - a.baseline) * 8 / 1000
	}
	a.baseline = raw.VideoBytesReceived
	a.hasBaseline = true
	a.samples++

	return Metrics{
		BitrateKbps:          kbps,
		PacketCount:          raw.AudioPacketsReceived + raw.VideoPacketsReceived,
		PacketsLost:          raw.AudioPacketsLost + raw.VideoPacketsLost,
		VideoPacketsLost:     raw.VideoPacketsLost,
		VideoBytesReceived:   raw.VideoBytesReceived,
		AudioBytesReceived:   raw.AudioBytesReceived,
		Width:                raw.Width,
		Height:               raw.Height,
		FrameRate:            raw.FrameRate,
		JitterBufferDelay:    raw.JitterBufferDelay,
		KeyFrames:            raw.KeyFrames,
		PLICount:             raw.PLICount,
		NACKCount:            raw.NACKCount,
		FreezeCount:          raw.FreezeCount,
		FreezeDuration:       raw.FreezeDuration,
		RoundTripTime:        raw.RoundTripTime,
		LastPacketReceivedAt: raw.LastPacketReceivedAt,
		Samples:              a.samples,
	}
}

// Reset forgets the baseline; the next sample starts a new series.
func (a *Aggregator) Reset() {
	*a = Aggregator{}
}
