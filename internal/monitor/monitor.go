// Package monitor drives the periodic stats requests of a playback session
// and watches that the samples keep coming.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/auroralive/player-telemetry/internal/player"
	"github.com/auroralive/player-telemetry/internal/session"
)

// Target is the part of the dispatcher the monitor needs.
type Target interface {
	Current() player.Snapshot
	RequestStats() bool
}

type Monitor struct {
	clock      clock.WithTicker
	target     Target
	interval   time.Duration
	stallAfter int

	mu         sync.Mutex // protects healthHook
	healthHook func(Status)
	health     streamHealth
	log        *logrus.Entry
}

// NewMonitor polls target every interval. stallAfter consecutive polls
// without a new sample mark the stream stalled; zero disables the check.
func NewMonitor(clk clock.WithTicker, target Target, interval time.Duration, stallAfter int) *Monitor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Monitor{
		clock:      clk,
		target:     target,
		interval:   interval,
		stallAfter: stallAfter,
		log:        logrus.WithField("component", "monitor"),
	}
}

// SetHealthHook registers fn to be called whenever the stream status
// changes. Pass nil to disable.
func (m *Monitor) SetHealthHook(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthHook = fn
}

// Start polls until ctx is done. The ticker is created before Start returns
// control to the loop, so a fake clock can be stepped as soon as it has
// waiters.
func (m *Monitor) Start(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.WithField("interval", m.interval).Info("stats polling started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info("stats polling stopped")
			return
		case <-ticker.C():
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	snap := m.target.Current()

	var (
		status  Status
		changed bool
	)
	// Samples are only expected once connected.
	if snap.Phase == session.Connected {
		status, changed = m.health.observe(snap.Generation, snap.Metrics.Samples, m.stallAfter)
	} else {
		status, changed = m.health.reset()
	}
	if snap.Phase.Active() {
		m.target.RequestStats()
	}

	if !changed {
		return
	}
	entry := m.log.WithFields(logrus.Fields{"generation": snap.Generation, "status": status.String()})
	if status == Stalled {
		entry.Warnf("no stats for %d polls", m.health.misses)
	} else {
		entry.Info("stats flowing")
	}

	m.mu.Lock()
	hook := m.healthHook
	m.mu.Unlock()
	if hook != nil {
		hook(status)
	}
}
