package realtime

import "sync"

// Relay mirrors event envelopes between channel instances, the way sibling
// application windows share one event stream. Publish never delivers back to
// the origin subscriber, so a channel does not hear its own relays; two
// channels that each own a live socket can still deliver one echo of the same
// logical server event, which consumers must tolerate.
type Relay interface {
	// Publish delivers env to every subscriber except origin.
	Publish(origin int, env Envelope)
	// Subscribe registers fn and returns its origin id and a cancel func.
	Subscribe(fn func(Envelope)) (origin int, cancel func())
}

// LocalRelay is the in-process Relay used when multiple channels live in one
// daemon.
type LocalRelay struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Envelope)
}

// NewLocalRelay constructs an empty relay.
func NewLocalRelay() *LocalRelay {
	return &LocalRelay{subs: make(map[int]func(Envelope))}
}

// Publish delivers env synchronously to every subscriber except origin.
func (r *LocalRelay) Publish(origin int, env Envelope) {
	r.mu.Lock()
	targets := make([]func(Envelope), 0, len(r.subs))
	for id, fn := range r.subs {
		if id == origin {
			continue
		}
		targets = append(targets, fn)
	}
	r.mu.Unlock()

	for _, fn := range targets {
		fn(env)
	}
}

// Subscribe registers fn and returns its origin id and a cancel func.
func (r *LocalRelay) Subscribe(fn func(Envelope)) (int, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.subs[id] = fn
	return id, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}
