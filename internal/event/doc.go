/*
Package event is wolo's process-wide publish/subscribe bus.

Publishers and subscribers meet on typed topics ([EventType]) without
depending on each other: the agent loop publishes streaming deltas and
tool lifecycle events, the session store announces persistence changes,
the permission checker announces approval requests, and renderers and the
watch server subscribe to whatever subset they care about.

# Delivery semantics

[Publish] is synchronous from the publisher's perspective: it returns
only after every subscriber has been invoked, in registration order. The
bus applies no backpressure: a subscriber doing slow work (a socket
writer, a renderer repaint) must take the event and buffer internally.
[PublishAsync] exists for fire-and-forget notifications where the
publisher must not wait.

Cross-topic ordering is unspecified. Within one topic and one publisher,
events arrive in publish order.

# Usage

Most code uses the package-level functions, which operate on the global
bus initialized at startup:

	unsubscribe := event.Subscribe(event.ToolStart, func(e event.Event) {
	    data := e.Data.(event.ToolStartData)
	    render(data.Tool, data.Input)
	})
	defer unsubscribe()

	event.Publish(event.Event{
	    Type: event.ToolStart,
	    Data: event.ToolStartData{SessionID: id, Tool: "bash"},
	})

[SubscribeAll] registers a catch-all, which is how the watch server
forwards every session-scoped event to its observers. Isolated buses for
tests come from [NewBus]; [Reset] replaces the global bus wholesale.

# Payload types

Every topic has a dedicated Data struct (types.go) so subscribers can
type-switch on e.Data without reparsing. Payloads are plain values; the
bus never mutates or retains them.

The watermill gochannel underneath ([Bus.PubSub]) is available for
callers that want raw message-queue semantics, middleware, or a
distributed backend later, without changing the typed surface.
*/
package event
