package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/auroralive/player-telemetry/internal/monitor"
	"github.com/auroralive/player-telemetry/internal/notify"
	"github.com/auroralive/player-telemetry/internal/player"
)

var ErrTooManyConnections = errors.New("too many websocket connections")

const writeWait = 10 * time.Second

// SnapshotSource is the dispatcher as seen by the broadcaster.
type SnapshotSource interface {
	Current() player.Snapshot
	Subscribe(handler func(player.Snapshot)) *player.Subscription
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer func() {
		c.b.RemoveClient(c)
		c.conn.Close()
	}()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans snapshots and notifications out to dashboard clients.
// Every published snapshot is forwarded. The current snapshot is also resent
// on a fixed interval with its elapsed time measured at the tick.
// A client whose buffer is full is disconnected.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	source   SnapshotSource
	buffer   int
	maxConns int

	snapMu      sync.Mutex // orders snapshot messages
	lastVersion uint64

	clock    clock.WithTicker
	ticker   clock.Ticker
	sub      *player.Subscription
	stop     chan struct{}
	stopOnce sync.Once
	log      *logrus.Entry
}

// NewBroadcaster subscribes to source and starts the periodic snapshot
// loop. maxConns of 0 means unlimited. Call Stop to release both.
func NewBroadcaster(source SnapshotSource, clk clock.WithTicker, snapshotInterval time.Duration, buffer, maxConns int) *Broadcaster {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if buffer <= 0 {
		buffer = 64
	}
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		source:   source,
		buffer:   buffer,
		maxConns: maxConns,
		clock:    clk,
		ticker:   clk.NewTicker(snapshotInterval),
		stop:     make(chan struct{}),
		log:      logrus.WithField("component", "broadcast"),
	}
	b.sub = source.Subscribe(b.publish)
	go b.snapshotLoop()
	return b
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.ticker.Stop()
		b.sub.Close()
	})
}

// AddClient registers conn and queues the current snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, b.buffer),
	}

	if data, err := json.Marshal(newSnapshotMessage(b.source.Current())); err == nil {
		c.send <- data
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

// RemoveClient is safe to call more than once.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// publish sends s unless a newer version already went out, so clients see
// non-decreasing versions even though the periodic loop races the
// subscription.
func (b *Broadcaster) publish(s player.Snapshot) {
	b.snapMu.Lock()
	defer b.snapMu.Unlock()
	if s.Version < b.lastVersion {
		return
	}
	b.lastVersion = s.Version
	b.broadcast(newSnapshotMessage(s))
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.ticker.C():
			b.publish(b.source.Current().AsOf(b.clock.Now()))
		}
	}
}

// Show implements notify.Presenter.
func (b *Broadcaster) Show(n notify.Notification) {
	b.broadcast(WSMessage{Type: MsgNotification, Payload: n})
}

func (b *Broadcaster) Dismiss(kind notify.Kind, seq uint64) {
	b.broadcast(WSMessage{Type: MsgDismiss, Payload: DismissPayload{Kind: kind, Seq: seq}})
}

// HealthChanged forwards stream health from the stats monitor.
func (b *Broadcaster) HealthChanged(status monitor.Status) {
	b.broadcast(WSMessage{Type: MsgHealth, Payload: HealthPayload{Status: status}})
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.WithError(err).Error("marshal message")
		return
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.log.WithField("remote", c.conn.RemoteAddr().String()).Warn("client too slow, disconnecting")
		b.RemoveClient(c)
	}
}
