// Package erbus fans out execution reports from the Wire Client's single
// read loop to every interested consumer: the reconciler, the execution
// coordinator, and the latency probe. Each subscriber owns an independent
// buffer, so one slow consumer cannot starve another.
package erbus

import (
	"context"
	"sync"

	"github.com/fransolofran/mesita-go/internal/core"
)

const defaultSubscriberCapacity = 64

// Bus is the Execution-Report Bus. The zero value is not usable; construct
// with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	name       string
	buf        *growableBuffer[core.ExecReport]
	dropOldest bool
	maxDepth   int
}

// Subscribe registers a new subscriber. When dropOldest is true, the
// subscription discards its oldest unread report rather than growing
// without bound once it reaches maxDepth reports; this is acceptable for the
// latency probe (stale RTT samples are worthless) but never for the
// reconciler, which must see every fill. Pass dropOldest=false and
// maxDepth=0 for unbounded growth.
func (b *Bus) Subscribe(name string, dropOldest bool, maxDepth int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		name:       name,
		buf:        newGrowableBuffer[core.ExecReport](defaultSubscriberCapacity),
		dropOldest: dropOldest,
		maxDepth:   maxDepth,
	}
	b.subs[name] = sub
	return sub
}

// Unsubscribe closes and removes a subscription.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[name]; ok {
		sub.buf.close()
		delete(b.subs, name)
	}
}

// Publish fans an execution report out to every current subscriber. Called
// from the Wire Client's single read loop; never blocks on a slow consumer.
func (b *Bus) Publish(report core.ExecReport) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.dropOldest {
			sub.buf.dropOldestAndSend(report, sub.maxDepth)
		} else {
			sub.buf.send(report)
		}
	}
}

// Close shuts down every subscription. Subsequent Receive calls drain
// whatever remains buffered, then return ok=false.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.buf.close()
	}
}

// Receive blocks until a report is available or the subscription is closed.
func (s *Subscription) Receive(ctx context.Context) (core.ExecReport, bool) {
	type result struct {
		report core.ExecReport
		ok     bool
	}
	done := make(chan result, 1)
	go func() {
		r, ok := s.buf.receive()
		done <- result{r, ok}
	}()

	select {
	case <-ctx.Done():
		return core.ExecReport{}, false
	case r := <-done:
		return r.report, r.ok
	}
}

// TryReceive returns a report without blocking.
func (s *Subscription) TryReceive() (core.ExecReport, bool) {
	return s.buf.tryReceive()
}

// Stats reports the subscription's current buffer occupancy.
func (s *Subscription) Stats() Stats {
	return s.buf.stats()
}
