package player

import "sync"

// Subscription delivers snapshots to one handler on its own goroutine. The
// mailbox holds a single snapshot: a handler that falls behind skips
// intermediate versions and sees the latest one, so the versions it observes
// are strictly increasing and producers never wait on it.
type Subscription struct {
	d       *Dispatcher
	handler func(Snapshot)
	mailbox chan Snapshot
	done    chan struct{}
	once    sync.Once
}

// Subscribe registers handler and immediately queues the current snapshot
// for it.
func (d *Dispatcher) Subscribe(handler func(Snapshot)) *Subscription {
	sub := &Subscription{
		d:       d,
		handler: handler,
		mailbox: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}

	d.mu.Lock()
	d.subs[sub] = struct{}{}
	sub.offer(*d.current.Load())
	d.mu.Unlock()

	go sub.run()
	return sub
}

// Unsubscribe stops delivery to sub. A handler call already in progress is
// allowed to finish. Unsubscribing twice is harmless.
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	d.mu.Lock()
	delete(d.subs, sub)
	d.mu.Unlock()
	sub.once.Do(func() { close(sub.done) })
}

func (s *Subscription) Close() {
	s.d.Unsubscribe(s)
}

// SubscriberCount is the number of live subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// offer replaces whatever is waiting in the mailbox with snap. Only the
// dispatcher sends, always under its mutex, so the second send cannot block.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case s.mailbox <- snap:
		return
	default:
	}
	select {
	case <-s.mailbox:
	default:
	}
	select {
	case s.mailbox <- snap:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.mailbox:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(snap)
		}
	}
}
