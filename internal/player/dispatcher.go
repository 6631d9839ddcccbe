// Package player serializes the asynchronous notifications of one media
// player into a single ordered stream and publishes the result as versioned
// snapshots.
package player

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/auroralive/player-telemetry/internal/layer"
	"github.com/auroralive/player-telemetry/internal/session"
	"github.com/auroralive/player-telemetry/internal/stats"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrTerminal  = errors.New("session failed")
)

// Dispatcher owns all session state. Every mutation, whether it comes from a
// Sink callback or from a consumer command, runs under mu; snapshots are built
// and handed to subscribers before mu is released, so subscribers see
// versions in order.
//
// Commands to the engine are issued after mu is released, serialized by
// cmdMu, so a slow engine never holds up callback producers.
type Dispatcher struct {
	mu         sync.Mutex
	now        clock.PassiveClock
	clock      *session.Clock
	agg        *stats.Aggregator
	layers     *layer.Controller
	phase      session.Phase
	playbackID string
	metrics    stats.Metrics
	errs       ErrorState
	errSeq     uint64
	rendering  bool
	sink       *Sink
	version    uint64
	subs       map[*Subscription]struct{}
	observer   Observer

	current atomic.Pointer[Snapshot]
	stale   atomic.Uint64

	cmdMu  sync.Mutex
	engine Engine
	log    *logrus.Entry
}

// NewDispatcher returns a dispatcher with no session. A nil clk means wall
// time.
func NewDispatcher(engine Engine, clk clock.PassiveClock) *Dispatcher {
	if clk == nil {
		clk = clock.RealClock{}
	}
	d := &Dispatcher{
		now:      clk,
		clock:    session.NewClock(clk),
		agg:      stats.NewAggregator(),
		layers:   layer.NewController(),
		subs:     make(map[*Subscription]struct{}),
		observer: nopObserver{},
		engine:   engine,
		log:      logrus.WithField("component", "dispatcher"),
	}
	snap := d.buildLocked()
	d.current.Store(&snap)
	return d
}

// SetObserver installs diagnostics hooks. Must be called before the
// dispatcher is shared.
func (d *Dispatcher) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Current returns the latest published snapshot.
func (d *Dispatcher) Current() Snapshot {
	return d.current.Load().Clone()
}

// StaleEvents counts events dropped for a generation or token mismatch.
func (d *Dispatcher) StaleEvents() uint64 {
	return d.stale.Load()
}

// Sink returns the callback surface of the running session, or nil. Render
// surfaces use it to report render-state changes.
func (d *Dispatcher) Sink() *Sink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

// Play starts a new session, discarding the current one, and asks the engine
// to play it.
func (d *Dispatcher) Play(req PlayRequest) *Sink {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	replacing := d.clock.Running()
	gen := d.clock.Start()
	d.resetLocked()
	d.phase = session.Connecting
	d.playbackID = req.PlaybackID
	sink := &Sink{d: d, gen: gen}
	d.sink = sink
	d.publishLocked()
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{
		"generation": gen,
		"playbackId": req.PlaybackID,
		"token":      req.Token.IsPresent(),
	}).Info("play")

	if replacing {
		d.engine.Close()
	}
	d.engine.Play(req, sink)
	return sink
}

// Close ends the current session. Closing when nothing is running is a
// no-op and publishes nothing.
func (d *Dispatcher) Close() {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	if !d.clock.Running() {
		d.mu.Unlock()
		return
	}
	gen := d.clock.End()
	d.resetLocked()
	d.phase = session.Stopped
	d.playbackID = ""
	d.sink = nil
	d.publishLocked()
	d.mu.Unlock()

	d.log.WithField("generation", gen).Info("close")
	d.engine.Close()
}

// RequestLayerSwitch asks the engine to switch to layers[index]. A request
// made while another is pending supersedes it. The outcome arrives as a
// later snapshot; only misuse (no session, not connected, bad index) is
// reported here.
func (d *Dispatcher) RequestLayerSwitch(index int) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	switch {
	case d.phase == session.Failed:
		d.mu.Unlock()
		return ErrTerminal
	case !d.phase.Active():
		d.mu.Unlock()
		return ErrNoSession
	}
	superseded, hadPending := d.layers.PendingToken()
	req, err := d.layers.Request(index)
	if err != nil {
		d.mu.Unlock()
		return errors.Wrap(err, "request layer switch")
	}
	d.errs.Layer = mo.None[ErrorInfo]()
	gen := d.clock.Generation()
	d.publishLocked()
	d.mu.Unlock()

	fields := logrus.Fields{"generation": gen, "token": req.Token, "rid": req.Layer.RID}
	if hadPending {
		fields["superseded"] = superseded
	}
	d.log.WithFields(fields).Info("layer switch requested")

	d.engine.SelectLayer(req)
	return nil
}

// RequestStats asks the engine for a statistics sample if a session is
// running. The sample arrives later through the sink.
func (d *Dispatcher) RequestStats() bool {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	active := d.phase.Active()
	d.mu.Unlock()
	if !active {
		return false
	}
	d.engine.RequestStats()
	return true
}

// ClearLayerError removes the transient layer error identified by seq. A
// newer error is left in place. Reports whether anything was cleared.
func (d *Dispatcher) ClearLayerError(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.errs.Layer.Get()
	if !ok || info.Seq != seq {
		return false
	}
	d.errs.Layer = mo.None[ErrorInfo]()
	d.publishLocked()
	return true
}

// Dispatch applies ev if it belongs to the running session. Events from an
// older generation, from a failed session, or layer outcomes for a
// superseded request change nothing and publish nothing.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.log.WithFields(logrus.Fields{
		"event":      ev.Kind().String(),
		"generation": ev.Stamp(),
	})

	if ev.Stamp() != d.clock.Generation() || !d.phase.Active() {
		d.dropLocked(ev, entry, "stale session")
		return
	}
	if !d.applyLocked(ev, entry) {
		d.dropLocked(ev, entry, "superseded request")
		return
	}
	d.observer.EventApplied(ev.Kind())
	d.publishLocked()
}

func (d *Dispatcher) dropLocked(ev Event, entry *logrus.Entry, why string) {
	d.stale.Add(1)
	d.observer.EventDropped(ev.Kind())
	entry.WithField("current", d.clock.Generation()).Debugf("dropped: %s", why)
}

func (d *Dispatcher) applyLocked(ev Event, entry *logrus.Entry) bool {
	switch e := ev.(type) {
	case ConnectSuccess:
		d.layers.Connected(e.Layers, e.Current)
		d.clock.MarkConnected()
		d.phase = session.Connected
		entry.WithField("layers", len(e.Layers)).Info("connected")

	case ConnectError:
		d.phase = session.Failed
		d.layers.Reset()
		d.rendering = false
		d.errs.Connection = mo.Some(d.newErrorLocked(e.Err))
		entry.WithError(e.Err).Warn("connection failed")

	case StatsSample:
		d.metrics = d.agg.Ingest(e.Raw)

	case LayerSwitchSuccess:
		outcome, ok := d.layers.Succeed(e.Token)
		if !ok {
			return false
		}
		d.observer.LayerSwitchResolved(outcome)
		entry.WithField("rid", outcome.Target.RID).Info("layer switched")

	case LayerSwitchFailure:
		outcome, ok := d.layers.Fail(e.Token, errorMessage(e.Err))
		if !ok {
			return false
		}
		d.errs.Layer = mo.Some(d.newErrorLocked(e.Err))
		d.observer.LayerSwitchResolved(outcome)
		entry.WithError(e.Err).WithField("rid", outcome.Target.RID).Warn("layer switch failed")

	case RenderStateChanged:
		d.rendering = e.Rendering
		if e.Rendering && d.clock.MarkFirstFrame() {
			entry.WithField("elapsedMs", d.clock.ElapsedMs()).Info("first frame")
		}

	default:
		return false
	}
	return true
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (d *Dispatcher) newErrorLocked(err error) ErrorInfo {
	d.errSeq++
	return ErrorInfo{Message: errorMessage(err), Seq: d.errSeq, At: d.now.Now()}
}

// resetLocked discards everything owned by the previous session. The clock
// has already been restarted or ended by the caller.
func (d *Dispatcher) resetLocked() {
	d.agg.Reset()
	d.layers.Reset()
	d.metrics = stats.Metrics{}
	d.errs = ErrorState{}
	d.rendering = false
}

func (d *Dispatcher) publishLocked() {
	d.version++
	snap := d.buildLocked()
	d.current.Store(&snap)
	for sub := range d.subs {
		sub.offer(snap)
	}
	d.observer.SnapshotPublished(snap)
}

func (d *Dispatcher) buildLocked() Snapshot {
	var current *layer.Descriptor
	if cur, ok := d.layers.Current(); ok {
		current = &cur
	}
	return Snapshot{
		Version:      d.version,
		Generation:   d.clock.Generation(),
		Phase:        d.phase,
		PlaybackID:   d.playbackID,
		ElapsedMs:    d.clock.ElapsedMs(),
		Milestones:   d.clock.Milestones(),
		Metrics:      d.metrics,
		Layers:       d.layers.Layers(),
		Current:      current,
		CurrentIndex: d.layers.CurrentIndex(),
		Switch:       d.layers.State(),
		LastSwitch:   d.layers.LastOutcome(),
		Errors:       d.errs,
		Rendering:    d.rendering,
		PublishedAt:  d.now.Now(),
	}
}
