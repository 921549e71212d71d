package supervisor

import (
	"sync"
	"sync/atomic"
)

// broadcastCapacity is the per-subscriber buffer depth (spec.md §4.4: "a
// bounded broadcast channel, capacity ≈200 chunks").
const broadcastCapacity = 200

// Chunk is one item delivered to an output subscriber: either raw PTY bytes
// or a lag notice (mutually exclusive — Lagged > 0 means Data is nil).
type Chunk struct {
	Data   []byte
	Lagged uint64
}

// outputBroadcaster fans a single PTY output stream out to N attachers
// (spec.md §4.4, component D) without ever blocking the output worker: a
// slow subscriber is dropped from (not disconnected from) delivery and
// accumulates a lag counter that is flushed as a synthetic Chunk the next
// time buffer space frees up.
type outputBroadcaster struct {
	mu    sync.Mutex
	subs  map[int]*subscriberState
	nextID int
}

type subscriberState struct {
	ch      chan Chunk
	dropped atomic.Uint64
}

func newOutputBroadcaster() *outputBroadcaster {
	return &outputBroadcaster{subs: make(map[int]*subscriberState)}
}

// OutputSubscription is a live handle to a broadcaster's stream.
type OutputSubscription struct {
	id   int
	ch   <-chan Chunk
	b    *outputBroadcaster
}

// C returns the receive channel for this subscription.
func (s *OutputSubscription) C() <-chan Chunk { return s.ch }

// Close detaches the subscription so Publish stops tracking it.
func (s *OutputSubscription) Close() {
	s.b.unsubscribe(s.id)
}

// Subscribe registers a new output subscriber and returns its subscription.
func (b *outputBroadcaster) Subscribe() *OutputSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	st := &subscriberState{ch: make(chan Chunk, broadcastCapacity)}
	b.subs[id] = st
	return &OutputSubscription{id: id, ch: st.ch, b: b}
}

func (b *outputBroadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish fans data out to every current subscriber. Never blocks: a
// subscriber whose buffer is full has its dropped counter incremented
// instead of receiving this chunk; the counter is delivered as a lag
// notice the next time that subscriber's buffer has room.
func (b *outputBroadcaster) Publish(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.subs {
		publishOne(st, data)
	}
}

func publishOne(st *subscriberState, data []byte) {
	if n := st.dropped.Load(); n > 0 {
		select {
		case st.ch <- Chunk{Lagged: n}:
			st.dropped.Add(-n)
		default:
			// Still full; can't even deliver the lag notice yet. Skip this
			// chunk too and keep accumulating the drop count below.
			st.dropped.Add(1)
			return
		}
	}

	select {
	case st.ch <- Chunk{Data: data}:
	default:
		st.dropped.Add(1)
	}
}

// subscriberCount reports how many attachers are currently subscribed;
// used by tests.
func (b *outputBroadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
