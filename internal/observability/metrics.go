package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/player"
)

// Metrics exports dispatcher diagnostics. It implements player.Observer.
type Metrics struct {
	registry *prometheus.Registry

	EventsApplied      *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	SnapshotsPublished prometheus.Counter
	LayerSwitches      *prometheus.CounterVec
	Generation         prometheus.Gauge
	BitrateKbps        prometheus.Gauge
	PacketsLost        prometheus.Gauge
	RoundTripSeconds   prometheus.Gauge
	Rendering          prometheus.Gauge
	StreamStalled      prometheus.Gauge
	ConnectSeconds     prometheus.Gauge
	FirstFrameSeconds  prometheus.Gauge
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "player_telemetry",
			Name:      "events_applied_total",
			Help:      "Player events applied to the session, by kind",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "player_telemetry",
			Name:      "events_dropped_total",
			Help:      "Player events dropped as stale or superseded, by kind",
		}, []string{"kind"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "player_telemetry",
			Name:      "snapshots_published_total",
			Help:      "Snapshot versions published",
		}),
		LayerSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "player_telemetry",
			Name:      "layer_switches_total",
			Help:      "Resolved layer switch requests by outcome and rid",
		}, []string{"outcome", "rid"}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "session_generation",
			Help:      "Current session generation",
		}),
		BitrateKbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "video_bitrate_kbps",
			Help:      "Video bitrate over the last stats interval",
		}),
		PacketsLost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "packets_lost",
			Help:      "Cumulative packets lost in the current session",
		}),
		RoundTripSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "round_trip_seconds",
			Help:      "Latest round-trip time to the media server",
		}),
		Rendering: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "rendering",
			Help:      "1 while video frames are being rendered",
		}),
		StreamStalled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "stream_stalled",
			Help:      "1 while the stats poller sees no new samples",
		}),
		ConnectSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "time_to_connect_seconds",
			Help:      "Session start to connect success; 0 until connected",
		}),
		FirstFrameSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "player_telemetry",
			Name:      "time_to_first_frame_seconds",
			Help:      "Session start to first rendered frame; 0 until rendering",
		}),
	}
	r.MustRegister(
		m.EventsApplied, m.EventsDropped, m.SnapshotsPublished, m.LayerSwitches,
		m.Generation, m.BitrateKbps, m.PacketsLost, m.RoundTripSeconds,
		m.Rendering, m.StreamStalled, m.ConnectSeconds, m.FirstFrameSeconds,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) EventApplied(kind player.EventKind) {
	m.EventsApplied.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) EventDropped(kind player.EventKind) {
	m.EventsDropped.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) SnapshotPublished(s player.Snapshot) {
	m.SnapshotsPublished.Inc()
	m.Generation.Set(float64(s.Generation))
	m.BitrateKbps.Set(float64(s.Metrics.BitrateKbps))
	m.PacketsLost.Set(float64(s.Metrics.PacketsLost))
	m.RoundTripSeconds.Set(s.Metrics.RoundTripTime.Seconds())
	m.Rendering.Set(boolGauge(s.Rendering))
	m.ConnectSeconds.Set(s.Milestones.TimeToConnect().OrEmpty().Seconds())
	m.FirstFrameSeconds.Set(s.Milestones.TimeToFirstFrame().OrEmpty().Seconds())
}

func (m *Metrics) LayerSwitchResolved(outcome layer.SwitchState) {
	rid := ""
	if outcome.Target != nil {
		rid = outcome.Target.RID
	}
	m.LayerSwitches.WithLabelValues(outcome.Kind.String(), rid).Inc()
}

// SetStalled is driven by the stats poller.
func (m *Metrics) SetStalled(stalled bool) {
	m.StreamStalled.Set(boolGauge(stalled))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
