package observability

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/player"
	"github.com/auroralive/player-telemetry/internal/session"
	"github.com/auroralive/player-telemetry/internal/stats"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	var _ player.Observer = m

	m.EventApplied(player.KindStats)
	m.EventApplied(player.KindStats)
	m.EventDropped(player.KindLayerSwitchSuccess)
	m.SnapshotPublished(player.Snapshot{
		Generation: 3,
		Rendering:  true,
		Metrics: stats.Metrics{
			BitrateKbps:   1000,
			PacketsLost:   7,
			RoundTripTime: 50 * time.Millisecond,
		},
	})
	m.LayerSwitchResolved(layer.SwitchState{Kind: layer.Failed, Target: &layer.Descriptor{RID: "h"}})
	m.SetStalled(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues("layer_switch_success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotsPublished))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Generation))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.BitrateKbps))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PacketsLost))
	assert.InDelta(t, 0.05, testutil.ToFloat64(m.RoundTripSeconds), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rendering))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LayerSwitches.WithLabelValues("failed", "h")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamStalled))
	assert.Zero(t, testutil.ToFloat64(m.ConnectSeconds), "not connected")
}

func TestMetricsMilestones(t *testing.T) {
	m := NewMetrics()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	m.SnapshotPublished(player.Snapshot{Milestones: session.Milestones{
		SessionStart:   mo.Some(start),
		ConnectSuccess: mo.Some(start.Add(300 * time.Millisecond)),
		FirstFrame:     mo.Some(start.Add(500 * time.Millisecond)),
	}})
	assert.InDelta(t, 0.3, testutil.ToFloat64(m.ConnectSeconds), 1e-9)
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.FirstFrameSeconds), 1e-9)

	m.SnapshotPublished(player.Snapshot{Milestones: session.Milestones{SessionStart: mo.Some(start)}})
	assert.Zero(t, testutil.ToFloat64(m.ConnectSeconds), "next session not connected yet")
	assert.Zero(t, testutil.ToFloat64(m.FirstFrameSeconds))
}

func TestSetupLogger(t *testing.T) {
	defer func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{})
	}()

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "debug", "json"))
	logrus.WithField("component", "test").Debug("hello")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"component":"test"`)

	assert.Error(t, SetupLogger(&buf, "loud", "text"))
}
