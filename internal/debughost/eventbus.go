package debughost

import "sync"

// EventKind discriminates the events the host publishes to CDP-layer
// subscribers (spec.md section 2, component C8).
type EventKind int

const (
	EventScriptAdded EventKind = iota
	EventHitBreakpoint
	EventResumed
	EventUncaughtError
	EventInitialInitializationComplete
)

// HostEvent is one published occurrence, with a kind-dependent payload.
type HostEvent struct {
	Kind        EventKind
	Script      *Script      // EventScriptAdded
	StackFrames []StackFrame // EventHitBreakpoint
	Error       *ValueNode   // EventUncaughtError
}

// subscriber is one subscriber's mailbox: a channel buffering up to 64
// events. Publish delivers to each subscriber in turn and blocks while a
// subscriber's buffer is full, until it drains or unsubscribes.
type subscriber struct {
	ch     chan HostEvent
	cancel chan struct{}
}

// EventBus publishes host events to subscribers with serialized,
// per-subscriber delivery. A subscriber joining after initialization
// completed receives a synthetic InitialInitializationComplete before any
// live events, per spec.md section 5.
type EventBus struct {
	mu            sync.Mutex
	subscribers   map[*subscriber]struct{}
	initialized   bool
	done          bool
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel of events for this subscriber. Call Unsubscribe
// with the same channel to stop delivery and release resources.
func (b *EventBus) Subscribe() <-chan HostEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan HostEvent, 64), cancel: make(chan struct{})}
	b.subscribers[sub] = struct{}{}

	if b.initialized {
		sub.ch <- HostEvent{Kind: EventInitialInitializationComplete}
	}
	return sub.ch
}

// Unsubscribe stops delivery to a channel previously returned by Subscribe.
func (b *EventBus) Unsubscribe(ch <-chan HostEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		if sub.ch == ch {
			close(sub.cancel)
			delete(b.subscribers, sub)
			return
		}
	}
}

// Publish fans an event out to every current subscriber. Must be called
// only from the event pump's serial executor so publish order matches
// occurrence order.
func (b *EventBus) Publish(ev HostEvent) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	if ev.Kind == EventInitialInitializationComplete {
		b.initialized = true
	}
	subs := make([]*subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.cancel:
		}
	}
}

// Complete marks the bus as having no further events (VM disconnect); it
// does not close subscriber channels so that a final drain can still
// observe buffered events, but further Publish calls become no-ops.
func (b *EventBus) Complete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
}

// IsComplete reports whether the event stream has ended.
func (b *EventBus) IsComplete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
