package observe

import "sync"

// Commit describes one committed transaction: a monotonically increasing
// sequence number assigned in commit order, and the write set it touched.
type Commit struct {
	Seq    uint64
	Writes Region
}

// Hub fans committed-transaction notifications out to subscribers. Publish is
// called exactly once per durable commit (never for rolled-back transactions,
// never before commit returns) by whatever owns the write path; each
// subscriber receives the commits whose write set overlaps its region.
//
// Delivery is conflating: every subscription holds a single-slot mailbox, and
// a newer relevant commit replaces an unconsumed older one. Subscribers may
// therefore miss intermediate commits but always see the latest relevant one,
// which is exactly the guarantee the fetch coordinator needs.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in commits overlapping region. The returned
// Subscription must be closed when no longer needed.
func (h *Hub) Subscribe(region Region) *Subscription {
	s := &Subscription{
		hub:    h,
		region: region,
		ch:     make(chan Commit, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers c to every subscription whose region overlaps the commit's
// write set, replacing any unconsumed pending commit.
func (h *Hub) Publish(c Commit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.region.Overlaps(c.Writes) {
			s.put(c)
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscription is a single-slot conflating mailbox of relevant commits.
type Subscription struct {
	hub    *Hub
	region Region
	ch     chan Commit
	once   sync.Once
}

// C returns the mailbox channel. At most one commit is pending at a time; a
// newer relevant commit replaces an unconsumed one.
func (s *Subscription) C() <-chan Commit { return s.ch }

// Close detaches the subscription from the hub. It is safe to call more than
// once. The mailbox channel is left open; a pending commit may still be read.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// put places c into the mailbox, evicting an unconsumed older commit. Called
// with the hub lock held, so puts never race each other; only the consumer
// side is concurrent.
func (s *Subscription) put(c Commit) {
	for {
		select {
		case s.ch <- c:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
