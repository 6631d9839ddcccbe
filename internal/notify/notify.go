// Package notify turns the error entries of published snapshots into
// user-facing notifications and clears transient layer errors after a while.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/auroralive/player-telemetry/internal/player"
)

type Kind int

const (
	ConnectionError Kind = iota
	LayerError
)

var kindNames = map[Kind]string{
	ConnectionError: "connection_error",
	LayerError:      "layer_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Notification is one error shown to the user. Duration is how long it stays
// up; zero means until the session ends or is replaced.
type Notification struct {
	Kind     Kind          `json:"kind"`
	Message  string        `json:"message"`
	Seq      uint64        `json:"seq"`
	Position string        `json:"position"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Presenter displays notifications. Calls come from the snapshot
// subscription goroutine, one at a time.
type Presenter interface {
	Show(n Notification)
	Dismiss(kind Kind, seq uint64)
}

// Config carries display options explicitly; there is no global toast state.
type Config struct {
	LayerErrorDuration time.Duration
	Position           string
}

// LayerErrorClearer is the dispatcher command used for auto-dismissal.
type LayerErrorClearer interface {
	ClearLayerError(seq uint64) bool
}

type Notifier struct {
	cfg        Config
	clock      clock.WithDelayedExecution
	clearer    LayerErrorClearer
	presenters []Presenter

	mu         sync.Mutex
	connSeq    uint64
	layerSeq   uint64
	layerTimer clock.Timer
	sub        *player.Subscription
}

// New returns a notifier that presents to presenters. A nil clk means wall
// time.
func New(cfg Config, clk clock.WithDelayedExecution, clearer LayerErrorClearer, presenters ...Presenter) *Notifier {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Notifier{
		cfg:        cfg,
		clock:      clk,
		clearer:    clearer,
		presenters: presenters,
	}
}

// Attach subscribes to d. Call Detach to stop.
func (n *Notifier) Attach(d *player.Dispatcher) {
	sub := d.Subscribe(n.handle)
	n.mu.Lock()
	n.sub = sub
	n.mu.Unlock()
}

func (n *Notifier) Detach() {
	n.mu.Lock()
	sub := n.sub
	n.sub = nil
	n.stopTimerLocked()
	n.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (n *Notifier) handle(s player.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if info, ok := s.Errors.Connection.Get(); ok {
		if info.Seq != n.connSeq {
			n.connSeq = info.Seq
			n.show(Notification{Kind: ConnectionError, Message: info.Message, Seq: info.Seq, At: info.At})
		}
	} else if n.connSeq != 0 {
		n.dismiss(ConnectionError, n.connSeq)
		n.connSeq = 0
	}

	if info, ok := s.Errors.Layer.Get(); ok {
		if info.Seq != n.layerSeq {
			n.layerSeq = info.Seq
			n.stopTimerLocked()
			n.show(Notification{
				Kind:     LayerError,
				Message:  info.Message,
				Seq:      info.Seq,
				Duration: n.cfg.LayerErrorDuration,
				At:       info.At,
			})
			if n.cfg.LayerErrorDuration > 0 && n.clearer != nil {
				seq := info.Seq
				n.layerTimer = n.clock.AfterFunc(n.cfg.LayerErrorDuration, func() {
					n.clearer.ClearLayerError(seq)
				})
			}
		}
	} else if n.layerSeq != 0 {
		n.stopTimerLocked()
		n.dismiss(LayerError, n.layerSeq)
		n.layerSeq = 0
	}
}

func (n *Notifier) stopTimerLocked() {
	if n.layerTimer != nil {
		n.layerTimer.Stop()
		n.layerTimer = nil
	}
}

func (n *Notifier) show(note Notification) {
	note.Position = n.cfg.Position
	for _, p := range n.presenters {
		p.Show(note)
	}
}

func (n *Notifier) dismiss(kind Kind, seq uint64) {
	for _, p := range n.presenters {
		p.Dismiss(kind, seq)
	}
}

// LogPresenter writes notifications to the log.
type LogPresenter struct {
	log *logrus.Entry
}

func NewLogPresenter() *LogPresenter {
	return &LogPresenter{log: logrus.WithField("component", "notify")}
}

func (p *LogPresenter) Show(n Notification) {
	p.log.WithFields(logrus.Fields{
		"kind":     n.Kind.String(),
		"seq":      n.Seq,
		"position": n.Position,
	}).Warn(n.Message)
}

func (p *LogPresenter) Dismiss(kind Kind, seq uint64) {
	p.log.WithFields(logrus.Fields{"kind": kind.String(), "seq": seq}).Debug("dismissed")
}
