package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/player"
)

type recorder struct {
	mu        sync.Mutex
	shown     []Notification
	dismissed []Kind
}

func (r *recorder) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
}

func (r *recorder) Dismiss(kind Kind, _ uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed = append(r.dismissed, kind)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown), len(r.dismissed)
}

type clearer struct {
	mu   sync.Mutex
	seqs []uint64
}

func (c *clearer) ClearLayerError(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs = append(c.seqs, seq)
	return true
}

func (c *clearer) cleared() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.seqs...)
}

func withLayerError(seq uint64, msg string) player.Snapshot {
	var s player.Snapshot
	s.Errors.Layer = mo.Some(player.ErrorInfo{Message: msg, Seq: seq})
	return s
}

func newFakeClock() *clocktesting.FakeClock {
	return clocktesting.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "connection_error", ConnectionError.String())
	assert.Equal(t, "layer_error", LayerError.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestShowsEachErrorOnce(t *testing.T) {
	rec := &recorder{}
	n := New(Config{LayerErrorDuration: 3 * time.Second, Position: "top"}, newFakeClock(), &clearer{}, rec)

	snap := withLayerError(1, "layer h unavailable")
	n.handle(snap)
	n.handle(snap)

	require.Len(t, rec.shown, 1)
	got := rec.shown[0]
	assert.Equal(t, LayerError, got.Kind)
	assert.Equal(t, "layer h unavailable", got.Message)
	assert.Equal(t, "top", got.Position)
	assert.Equal(t, 3*time.Second, got.Duration)
}

func TestLayerErrorAutoClears(t *testing.T) {
	fake := newFakeClock()
	cl := &clearer{}
	n := New(Config{LayerErrorDuration: 3 * time.Second}, fake, cl, &recorder{})

	n.handle(withLayerError(4, "boom"))
	fake.Step(2 * time.Second)
	assert.Empty(t, cl.cleared())

	fake.Step(time.Second)
	require.Eventually(t, func() bool { return len(cl.cleared()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint64{4}, cl.cleared())
}

func TestNewerLayerErrorRestartsTimer(t *testing.T) {
	fake := newFakeClock()
	cl := &clearer{}
	rec := &recorder{}
	n := New(Config{LayerErrorDuration: 3 * time.Second}, fake, cl, rec)

	n.handle(withLayerError(1, "first"))
	fake.Step(2 * time.Second)
	n.handle(withLayerError(2, "second"))
	fake.Step(2 * time.Second)
	assert.Empty(t, cl.cleared(), "first timer was stopped")

	fake.Step(time.Second)
	require.Eventually(t, func() bool { return len(cl.cleared()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint64{2}, cl.cleared())
	assert.Len(t, rec.shown, 2)
}

func TestZeroDurationIsSticky(t *testing.T) {
	fake := newFakeClock()
	n := New(Config{}, fake, &clearer{}, &recorder{})

	n.handle(withLayerError(1, "boom"))
	assert.False(t, fake.HasWaiters())
}

func TestDismissWhenErrorGoes(t *testing.T) {
	rec := &recorder{}
	n := New(Config{LayerErrorDuration: time.Second}, newFakeClock(), &clearer{}, rec)

	var snap player.Snapshot
	snap.Errors.Connection = mo.Some(player.ErrorInfo{Message: "ice failed", Seq: 1})
	snap.Errors.Layer = mo.Some(player.ErrorInfo{Message: "boom", Seq: 2})
	n.handle(snap)
	n.handle(player.Snapshot{})

	assert.Len(t, rec.shown, 2)
	assert.ElementsMatch(t, []Kind{ConnectionError, LayerError}, rec.dismissed)
}

type idleEngine struct{}

func (idleEngine) Play(player.PlayRequest, *player.Sink) {}
func (idleEngine) Close()                                {}
func (idleEngine) SelectLayer(layer.Request)             {}
func (idleEngine) RequestStats()                         {}

func TestAttachClearsDispatcherLayerError(t *testing.T) {
	fake := newFakeClock()
	// The dismissal timer calls into the dispatcher while fake is locked, so
	// the dispatcher gets a clock of its own.
	d := player.NewDispatcher(idleEngine{}, clocktesting.NewFakePassiveClock(fake.Now()))
	rec := &recorder{}
	n := New(Config{LayerErrorDuration: 3 * time.Second}, fake, d, rec)
	n.Attach(d)
	defer n.Detach()

	sink := d.Play(player.NewPlayRequest("stream", ""))
	sink.ConnectSucceeded(layer.Standard(), 0)
	require.NoError(t, d.RequestLayerSwitch(2))
	token := d.Current().Switch.Token
	sink.LayerSwitchFailed(token, errors.New("layer h unavailable"))
	require.True(t, d.Current().Errors.Layer.IsPresent())

	// The only waiter on fake is the dismissal timer.
	require.Eventually(t, fake.HasWaiters, time.Second, time.Millisecond)
	fake.Step(3 * time.Second)

	require.Eventually(t, func() bool { return d.Current().Errors.Layer.IsAbsent() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { _, dismissed := rec.counts(); return dismissed == 1 }, time.Second, time.Millisecond)
	shown, _ := rec.counts()
	assert.Equal(t, 1, shown)
}
