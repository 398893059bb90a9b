package docstore

import "sync"

type subscriber struct {
	collection string
	ch         chan Snapshot

	mu        sync.Mutex
	delivered bool
	last      uint64
	closed    bool
}

// offer hands snap to the reader, replacing any snapshot it has not picked
// up yet. Snapshots older than the last delivered one are dropped.
func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.delivered && snap.Version <= s.last) {
		return
	}
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
	s.delivered = true
	s.last = snap.Version
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: map[string]map[*subscriber]struct{}{}}
}

func (h *hub) add(collection string) *subscriber {
	sub := &subscriber{collection: collection, ch: make(chan Snapshot, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[collection] == nil {
		h.subs[collection] = map[*subscriber]struct{}{}
	}
	h.subs[collection][sub] = struct{}{}
	return sub
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sub.collection]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.collection)
		}
	}
	h.mu.Unlock()
	sub.close()
}

func (h *hub) watched(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection]) > 0
}

func (h *hub) broadcast(snap Snapshot) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[snap.Collection]))
	for sub := range h.subs[snap.Collection] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.offer(snap)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*subscriber
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.subs = map[string]map[*subscriber]struct{}{}
	h.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}
}
