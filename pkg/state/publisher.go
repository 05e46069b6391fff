package state

import (
	"sync"
)

// Publisher provides fan-out delivery of items to a dynamic set of
// subscribers. Each subscriber maintains an independent queue, so slow
// subscribers delay only themselves. Items are delivered to each subscriber in
// publication order. A Publisher is safe for concurrent usage.
type Publisher struct {
	// lock guards subscribers.
	lock sync.Mutex
	// subscribers maps subscription identifiers to subscriptions.
	subscribers map[uint64]*Subscription
	// nextIdentifier is the identifier to assign to the next subscription.
	nextIdentifier uint64
}

// NewPublisher creates a new publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[uint64]*Subscription),
	}
}

// Subscription represents a single subscriber's view of a publisher's stream.
type Subscription struct {
	// publisher is the associated publisher.
	publisher *Publisher
	// identifier is the subscription identifier within the publisher.
	identifier uint64
	// lock guards items.
	lock sync.Mutex
	// items is the queue of undelivered items, in publication order.
	items []interface{}
	// signal is strobed (with a single-element buffer) whenever new items are
	// enqueued. It is never closed.
	signal chan struct{}
}

// Subscribe registers a new subscription with the publisher. Only items
// published after registration will be delivered.
func (p *Publisher) Subscribe() *Subscription {
	// Acquire the subscriber lock and ensure its release.
	p.lock.Lock()
	defer p.lock.Unlock()

	// Create and register the subscription.
	subscription := &Subscription{
		publisher:  p,
		identifier: p.nextIdentifier,
		signal:     make(chan struct{}, 1),
	}
	p.subscribers[p.nextIdentifier] = subscription
	p.nextIdentifier++

	// Done.
	return subscription
}

// Publish enqueues an item for every current subscriber and strobes their
// wake signals.
func (p *Publisher) Publish(item interface{}) {
	// Acquire the subscriber lock and ensure its release.
	p.lock.Lock()
	defer p.lock.Unlock()

	// Enqueue for each subscriber and strobe its signal in a non-blocking
	// fashion (the signal channel is buffered, so no wakeup is ever lost).
	for _, subscription := range p.subscribers {
		subscription.lock.Lock()
		subscription.items = append(subscription.items, item)
		subscription.lock.Unlock()
		select {
		case subscription.signal <- struct{}{}:
		default:
		}
	}
}

// Signal returns the subscription's wake channel. The channel is buffered with
// a capacity of 1, so no wakeup is lost if it isn't actively polled. The
// channel is never closed.
func (s *Subscription) Signal() <-chan struct{} {
	return s.signal
}

// Drain atomically removes and returns all currently queued items, in
// publication order.
func (s *Subscription) Drain() []interface{} {
	// Acquire the item lock and ensure its release.
	s.lock.Lock()
	defer s.lock.Unlock()

	// Swap out the queue.
	items := s.items
	s.items = nil

	// Done.
	return items
}

// Unsubscribe removes the subscription from its publisher. No further items
// will be enqueued, though already queued items remain drainable.
func (s *Subscription) Unsubscribe() {
	// Acquire the subscriber lock and ensure its release.
	s.publisher.lock.Lock()
	defer s.publisher.lock.Unlock()

	// Deregister the subscription.
	delete(s.publisher.subscribers, s.identifier)
}
