package store

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// hub fans committed snapshots out to in-process subscribers
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

// subscriber holds at most one pending snapshot. A newer snapshot replaces
// an undelivered older one and versions at or below the last offered are
// dropped.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Snapshot
	latest int64
	closed bool
}

func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || snap.Version <= s.latest {
		return
	}
	s.latest = snap.Version

	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// add registers a subscriber for id
func (h *hub) add(id string) *subscriber {
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	if h.subs[id] == nil {
		h.subs[id] = make(map[*subscriber]struct{})
	}
	h.subs[id][sub] = struct{}{}
	return sub
}

// remove unregisters and closes a subscriber
func (h *hub) remove(id string, sub *subscriber) {
	h.mu.Lock()
	delete(h.subs[id], sub)
	if len(h.subs[id]) == 0 {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	sub.close()
}

func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[snap.ID]))
	for sub := range h.subs[snap.ID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.offer(snap)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var subs []*subscriber
	for _, set := range h.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

type getFunc func(ctx context.Context, id string) (Snapshot, error)

// subscribe registers a subscriber and primes it with the current snapshot.
// Registering before the read means a commit racing with the read is never
// lost. The subscriber is removed when ctx is done.
func (h *hub) subscribe(ctx context.Context, id string, get getFunc) (*subscriber, error) {
	sub := h.add(id)

	snap, err := get(ctx, id)
	if err != nil {
		h.remove(id, sub)
		return nil, err
	}
	sub.offer(snap)

	go func() {
		<-ctx.Done()
		h.remove(id, sub)
	}()
	return sub, nil
}

// poll re-reads id on every tick and publishes versions newer than the last
// one seen. Drivers without a change feed use it to pick up writes from
// other processes.
func (h *hub) poll(ctx context.Context, id string, clock quartz.Clock, every time.Duration, get getFunc, logger *log.Logger) {
	ticker := clock.NewTicker(every, "store", "poll")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := get(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("Poll failed", "table", id, "error", err)
				}
				continue
			}
			h.publish(snap)
		}
	}
}
