package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType names a registry mutation.
type EventType string

const (
	EventServiceCreated    EventType = "service.created"
	EventServiceUpdated    EventType = "service.updated"
	EventServiceDeleted    EventType = "service.deleted"
	EventServiceCloned     EventType = "service.cloned"
	EventDependencyCreated EventType = "dependency.created"
	EventDependencyRemoved EventType = "dependency.removed"
	EventPortAllocated     EventType = "port.allocated"
	EventPortReleased      EventType = "port.released"
	EventRouteCreated      EventType = "route.created"
	EventRouteDeleted      EventType = "route.deleted"
	EventSolutionCreated   EventType = "solution.created"
	EventSolutionUpdated   EventType = "solution.updated"
	EventSolutionDeleted   EventType = "solution.deleted"
	EventTemplateGenerated EventType = "template.generated"
	EventHealthChecked     EventType = "health.checked"
	EventProfileCreated    EventType = "profile.created"
	EventResourceCreated   EventType = "resource.created"
)

// Event records a single registry mutation.
type Event struct {
	ID        string
	Type      EventType
	TeamID    string
	EntityID  string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber receives published events.
type Subscriber chan *Event

const (
	queueDepth      = 100
	subscriberDepth = 50
)

// Broker fans registry events out to subscribers. Publishing never
// blocks a registry operation: the queue absorbs bursts, a full
// subscriber is skipped, and overflow is counted instead of waited on.
type Broker struct {
	mu      sync.Mutex
	subs    map[Subscriber]struct{}
	queue   chan *Event
	done    chan struct{}
	start   sync.Once
	stop    sync.Once
	dropped atomic.Uint64
}

// NewBroker builds an idle broker; Start launches dispatch.
func NewBroker() *Broker {
	return &Broker{
		subs:  make(map[Subscriber]struct{}),
		queue: make(chan *Event, queueDepth),
		done:  make(chan struct{}),
	}
}

// Start launches the dispatch loop. Calling it again is a no-op.
func (b *Broker) Start() {
	b.start.Do(func() { go b.dispatch() })
}

// Stop ends dispatch. Subscriber channels stay open until their owners
// detach with Unsubscribe.
func (b *Broker) Stop() {
	b.stop.Do(func() { close(b.done) })
}

// Subscribe registers a buffered channel for future events.
func (b *Broker) Subscribe() Subscriber {
	sub := make(Subscriber, subscriberDepth)
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe detaches and closes the channel. Safe to call twice.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
}

// Publish enqueues the event, stamping the time if the caller did not.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case b.queue <- event:
	case <-b.done:
	default:
		b.dropped.Add(1)
	}
}

func (b *Broker) dispatch() {
	for {
		select {
		case ev := <-b.queue:
			b.mu.Lock()
			for sub := range b.subs {
				select {
				case sub <- ev:
				default:
					b.dropped.Add(1)
				}
			}
			b.mu.Unlock()
		case <-b.done:
			return
		}
	}
}

// SubscriberCount reports how many subscribers are attached.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped reports events discarded because a buffer was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}
