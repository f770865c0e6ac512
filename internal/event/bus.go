// Package event is the process-wide publish/subscribe bus: typed topics,
// synchronous delivery, and a watermill gochannel backing for callers that
// want raw message-queue semantics.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType names a topic on the bus.
type EventType string

const (
	SessionCreated     EventType = "session.created"
	SessionUpdated     EventType = "session.updated"
	SessionDeleted     EventType = "session.deleted"
	MessageCreated     EventType = "message.created"
	MessageUpdated     EventType = "message.updated"
	MessageRemoved     EventType = "message.removed"
	PartUpdated        EventType = "part.updated"
	FileEdited         EventType = "file.edited"
	PermissionRequired EventType = "permission.required"
	PermissionResolved EventType = "permission.resolved"

	// Streaming topics the agent loop publishes while a run progresses.
	TextDelta      EventType = "text-delta"
	ReasoningDelta EventType = "reasoning-delta"
	ToolStart      EventType = "tool-start"
	ToolComplete   EventType = "tool-complete"
	ToolResult     EventType = "tool-result"
	Finish         EventType = "finish"
	LoopError      EventType = "error"

	TodoUpdated   EventType = "todo.updated"
	QuestionAsked EventType = "question.asked"
)

// Event is one published record: a topic plus its typed payload.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives events. Delivery is synchronous: a subscriber doing
// slow work must buffer internally, the bus applies no backpressure.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus fans events out to per-topic and catch-all subscribers. The watermill
// gochannel underneath stays available for middleware or a future
// distributed backend; typed dispatch goes through the direct subscriber
// table so payloads keep their Go types.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

var globalBus = newBus()

func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[EventType][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers fn for one topic on the global bus and returns its
// unsubscribe function. Subscribers are expected to be added once at
// startup.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribe(eventType, id) }
}

// SubscribeAll registers fn for every topic on the global bus.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish delivers an event on the global bus. Delivery is synchronous
// from the publisher's perspective: Publish returns only after every
// subscriber has been invoked, in registration order. Subscribers schedule
// their own asynchronous work when they need it.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	for _, sub := range b.snapshot(event.Type) {
		sub(event)
	}
}

// PublishAsync delivers an event without waiting: each subscriber runs in
// its own goroutine. For fire-and-forget notifications where the publisher
// must not block on slow observers.
func PublishAsync(event Event) {
	globalBus.PublishAsync(event)
}

func (b *Bus) PublishAsync(event Event) {
	for _, sub := range b.snapshot(event.Type) {
		go sub(event)
	}
}

// PublishSync is an explicit alias for Publish, kept for call sites that
// want the delivery mode visible at a glance.
func PublishSync(event Event) {
	globalBus.Publish(event)
}

// snapshot collects the subscribers an event should reach, under the read
// lock, so delivery itself runs lock-free and a subscriber may safely
// re-enter the bus.
func (b *Bus) snapshot(t EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, entry := range b.subscribers[t] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// NewBus creates an isolated bus, independent of the global one.
func NewBus() *Bus {
	return newBus()
}

// Reset tears down the global bus and replaces it with a fresh one.
// Test-only.
func Reset() {
	globalBus.mu.Lock()
	globalBus.closed = true
	globalBus.closedCancel()
	globalBus.mu.Unlock()

	_ = globalBus.pubsub.Close()

	// Give detached PublishAsync goroutines a beat to drain.
	time.Sleep(10 * time.Millisecond)

	globalBus = newBus()
}

// Close drops all subscribers and shuts the backing pubsub down.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the backing watermill channel for middleware, routing, or
// distributed backends.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// PubSub returns the global bus's backing watermill channel.
func PubSub() *gochannel.GoChannel {
	return globalBus.PubSub()
}
