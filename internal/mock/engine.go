// Package mock is a simulated player engine. It connects after a delay,
// grows its counters at the bitrate of the selected layer and switches
// layers after a delay, failing for configured rids.
package mock

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/auroralive/player-telemetry/internal/config"
	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/player"
	"github.com/auroralive/player-telemetry/internal/rtcstats"
)

var (
	ErrNoPlaybackID = errors.New("playback id is required")
	ErrNoLayers     = errors.New("no layers configured")
)

const (
	frameRate        = 30
	audioKbps        = 48
	videoPacketBytes = 1200
	audioPacketBytes = 160
)

type Engine struct {
	cfg       config.MockConfig
	clock     clock.WithDelayedExecution
	layers    []layer.Descriptor
	kbps      map[string]uint64
	collector *rtcstats.Collector
	log       *logrus.Entry

	mu        sync.Mutex
	rng       *rand.Rand
	sink      *player.Sink
	timers    []clock.Timer // connect and render for the current session
	switching clock.Timer
	connected bool
	current   int
	counters  counters
	report    webrtc.StatsReport
}

// counters is the cumulative state behind the synthetic stats report.
type counters struct {
	videoBytes   uint64
	audioBytes   uint64
	videoPackets uint64
	audioPackets uint64
	videoLost    uint64
	frames       uint64
	keyFrames    uint64
	plis         uint64
	nacks        uint64
	at           time.Time
}

// NewEngine builds an engine for cfg. A nil clk means wall time.
func NewEngine(cfg config.MockConfig, clk clock.WithDelayedExecution) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	e := &Engine{
		cfg:   cfg,
		clock: clk,
		layers: lo.Map(cfg.Layers, func(l config.MockLayer, _ int) layer.Descriptor {
			label := l.Label
			if label == "" {
				label = layer.Label(l.RID)
			}
			return layer.Descriptor{RID: l.RID, Label: label, Width: l.Width, Height: l.Height}
		}),
		kbps: lo.SliceToMap(cfg.Layers, func(l config.MockLayer) (string, uint64) {
			return l.RID, l.BitrateKbps
		}),
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: logrus.WithField("component", "mock"),
	}
	e.collector = rtcstats.NewCollector(rtcstats.StatsGetterFunc(e.lastReport))
	return e
}

func (e *Engine) Play(req player.PlayRequest, sink *player.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimersLocked()
	e.sink = sink
	e.connected = false
	e.current = e.initialLayer()
	e.counters = counters{}
	e.report = nil
	e.collector.Reset()

	switch {
	case req.PlaybackID == "":
		e.afterLocked(e.cfg.ConnectDelay, func() { sink.ConnectFailed(ErrNoPlaybackID) })
		return
	case len(e.layers) == 0:
		e.afterLocked(e.cfg.ConnectDelay, func() { sink.ConnectFailed(ErrNoLayers) })
		return
	}

	e.log.WithFields(logrus.Fields{"generation": sink.Generation(), "playbackId": req.PlaybackID}).Debug("connecting")
	connectAt := e.clock.Now().Add(e.cfg.ConnectDelay)
	e.afterLocked(e.cfg.ConnectDelay, func() { e.connect(sink, connectAt) })
	e.afterLocked(e.cfg.ConnectDelay+e.cfg.RenderDelay, func() { sink.RenderStateChanged(true) })
}

// connect runs on the timer; at is when it was due. Timer callbacks must not
// read e.clock: fake clocks run them under their own lock.
func (e *Engine) connect(sink *player.Sink, at time.Time) {
	e.mu.Lock()
	if e.sink != sink {
		e.mu.Unlock()
		return
	}
	e.connected = true
	e.counters.at = at
	layers := append([]layer.Descriptor(nil), e.layers...)
	current := e.current
	e.mu.Unlock()

	sink.ConnectSucceeded(layers, current)
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
	e.sink = nil
	e.connected = false
}

func (e *Engine) SelectLayer(req layer.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sink := e.sink
	if sink == nil {
		return
	}

	// A new request replaces the pending one.
	if e.switching != nil {
		e.switching.Stop()
	}
	fail := lo.Contains(e.cfg.FailRIDs, req.Layer.RID)
	e.switching = e.clock.AfterFunc(e.cfg.SwitchDelay, func() {
		if fail {
			sink.LayerSwitchFailed(req.Token, errors.Errorf("layer %s unavailable", req.Layer.RID))
			return
		}
		e.mu.Lock()
		if e.sink == sink {
			e.current = req.Index
		}
		e.mu.Unlock()
		sink.LayerSwitchSucceeded(req.Token)
	})
}

// RequestStats advances the counters to now and reports them synchronously
// through the same WebRTC report conversion a real peer connection uses.
func (e *Engine) RequestStats() {
	e.mu.Lock()
	sink := e.sink
	if sink == nil || !e.connected {
		e.mu.Unlock()
		return
	}
	e.advanceLocked(e.clock.Now())
	e.report = e.buildReportLocked()
	e.mu.Unlock()

	sink.Stats(e.collector.Collect())
}

func (e *Engine) lastReport() webrtc.StatsReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

func (e *Engine) initialLayer() int {
	if e.cfg.InitialLayer < 0 || e.cfg.InitialLayer >= len(e.layers) {
		return 0
	}
	return e.cfg.InitialLayer
}

func (e *Engine) afterLocked(d time.Duration, fn func()) {
	e.timers = append(e.timers, e.clock.AfterFunc(d, fn))
}

func (e *Engine) stopTimersLocked() {
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
	if e.switching != nil {
		e.switching.Stop()
		e.switching = nil
	}
}

// advanceLocked grows the counters by what the current layer would have
// delivered since the previous sample, with up to 10% jitter.
func (e *Engine) advanceLocked(now time.Time) {
	c := &e.counters
	elapsed := now.Sub(c.at).Seconds()
	if elapsed <= 0 {
		return
	}
	c.at = now

	jitter := 0.9 + 0.2*e.rng.Float64()
	kbps := e.kbps[e.layers[e.current].RID]
	videoBytes := uint64(float64(kbps) * 1000 / 8 * elapsed * jitter)
	audioBytes := uint64(audioKbps * 1000 / 8 * elapsed)

	c.videoBytes += videoBytes
	c.audioBytes += audioBytes
	c.videoPackets += videoBytes / videoPacketBytes
	c.audioPackets += audioBytes / audioPacketBytes
	c.frames += uint64(frameRate * elapsed)
	c.keyFrames = c.frames/(frameRate*2) + 1
	if e.rng.Intn(10) == 0 {
		c.videoLost++
		c.nacks++
	}
	if e.rng.Intn(50) == 0 {
		c.plis++
	}
}

func (e *Engine) buildReportLocked() webrtc.StatsReport {
	c := e.counters
	cur := e.layers[e.current]
	ts := statsTimestamp(c.at)
	return webrtc.StatsReport{
		"inbound-video": webrtc.InboundRTPStreamStats{
			Timestamp:                   ts,
			Type:                        webrtc.StatsTypeInboundRTP,
			ID:                          "inbound-video",
			Kind:                        "video",
			BytesReceived:               c.videoBytes,
			PacketsReceived:             uint32(c.videoPackets),
			PacketsLost:                 int32(c.videoLost),
			FrameWidth:                  cur.Width,
			FrameHeight:                 cur.Height,
			FramesDecoded:               uint32(c.frames),
			KeyFramesDecoded:            uint32(c.keyFrames),
			PLICount:                    uint32(c.plis),
			NACKCount:                   uint32(c.nacks),
			JitterBufferDelay:           0.04 * float64(c.frames),
			JitterBufferEmittedCount:    c.frames,
			LastPacketReceivedTimestamp: ts,
		},
		"inbound-audio": webrtc.InboundRTPStreamStats{
			Timestamp:       ts,
			Type:            webrtc.StatsTypeInboundRTP,
			ID:              "inbound-audio",
			Kind:            "audio",
			BytesReceived:   c.audioBytes,
			PacketsReceived: uint32(c.audioPackets),
		},
		"candidate-pair": webrtc.ICECandidatePairStats{
			Timestamp:            ts,
			Type:                 webrtc.StatsTypeCandidatePair,
			ID:                   "candidate-pair",
			Nominated:            true,
			CurrentRoundTripTime: 0.02 + 0.01*e.rng.Float64(),
		},
	}
}

func statsTimestamp(t time.Time) webrtc.StatsTimestamp {
	return webrtc.StatsTimestamp(float64(t.UnixNano()) / float64(time.Millisecond))
}
