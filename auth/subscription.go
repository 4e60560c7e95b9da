package auth

import (
	"slices"
	"sync"
)

// Callback receives session transitions. session is nil for SIGNED_OUT.
type Callback func(event Event, session *Session)

// Subscription is the handle returned by OnAuthStateChange.
type Subscription interface {
	// Unsubscribe detaches the callback. It is safe to call more than once
	// and from inside a callback; a fan-out already in progress still
	// delivers the current event to the snapshot it took.
	Unsubscribe()
}

type subscription struct {
	id  uint64
	reg *registry
}

func (s *subscription) Unsubscribe() {
	s.reg.remove(s.id)
}

type registry struct {
	mu     sync.Mutex
	nextID uint64
	order  []uint64
	subs   map[uint64]Callback
}

func newRegistry() *registry {
	return &registry{subs: make(map[uint64]Callback)}
}

func (r *registry) add(cb Callback) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.subs[id] = cb
	r.order = append(r.order, id)
	return &subscription{id: id, reg: r}
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return
	}
	delete(r.subs, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

func (r *registry) snapshot() []Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Callback, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.subs[id])
	}
	return out
}

// notify delivers the event to every callback registered when it was
// called, in registration order, without holding the lock.
func (r *registry) notify(event Event, session *Session) {
	for _, cb := range r.snapshot() {
		cb(event, session)
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
