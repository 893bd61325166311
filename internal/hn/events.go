package hn

import (
	"context"

	"github.com/starford/headless/internal/content"
)

// EventName identifies a response lifecycle event.
type EventName string

// Response lifecycle events, in dispatch order.
const (
	// EventCreated fires before the cache lookup.
	EventCreated EventName = "response.created"
	// EventCacheMiss fires when the response has to be built.
	EventCacheMiss EventName = "response.cache_miss"
	// EventPostEntitiesAdded fires after the root object and everything it
	// pulls in have been added.
	EventPostEntitiesAdded EventName = "response.entities_added"
	// EventPreSend fires right before a freshly built response is returned.
	// It does not fire on cache hits.
	EventPreSend EventName = "response.pre_send"
)

// Per-object events.
const (
	EventObjectAdded      EventName = "object.added"
	EventObjectNormalized EventName = "object.normalized"
)

// ResponseListener may mutate the response in place or return a replacement.
// Returning nil keeps the current response.
type ResponseListener func(ctx context.Context, resp *Response) *Response

// ObjectAddedListener runs before an object is handled. It may mutate the
// object (for example clear field values) or change the view mode.
type ObjectAddedListener func(ctx context.Context, ev *ObjectAddedEvent)

// ObjectNormalizedListener runs after an object has been normalized and may
// mutate or replace ev.Record.
type ObjectNormalizedListener func(ctx context.Context, ev *ObjectNormalizedEvent)

// ObjectAddedEvent is the payload of EventObjectAdded.
type ObjectAddedEvent struct {
	Object   *content.Object
	ViewMode string
}

// ObjectNormalizedEvent is the payload of EventObjectNormalized.
type ObjectNormalizedEvent struct {
	Object   *content.Object
	ViewMode string
	Record   Record
}

// Subscriber registers listeners on a request's event bus.
type Subscriber interface {
	Subscribe(bus *EventBus)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(bus *EventBus)

func (f SubscriberFunc) Subscribe(bus *EventBus) { f(bus) }

// EventBus dispatches lifecycle events synchronously in registration order.
// A bus belongs to a single request.
type EventBus struct {
	response   map[EventName][]ResponseListener
	added      []ObjectAddedListener
	normalized []ObjectNormalizedListener
}

// NewEventBus returns a bus with every subscriber registered.
func NewEventBus(subs ...Subscriber) *EventBus {
	b := &EventBus{response: make(map[EventName][]ResponseListener)}
	for _, s := range subs {
		s.Subscribe(b)
	}
	return b
}

func (b *EventBus) OnResponse(name EventName, l ResponseListener) {
	b.response[name] = append(b.response[name], l)
}

func (b *EventBus) OnObjectAdded(l ObjectAddedListener) {
	b.added = append(b.added, l)
}

func (b *EventBus) OnObjectNormalized(l ObjectNormalizedListener) {
	b.normalized = append(b.normalized, l)
}

// DispatchResponse runs the listeners of name and returns the resulting
// response.
func (b *EventBus) DispatchResponse(ctx context.Context, name EventName, resp *Response) *Response {
	for _, l := range b.response[name] {
		if next := l(ctx, resp); next != nil {
			resp = next
		}
	}
	return resp
}

// DispatchObjectAdded returns the possibly replaced object and view mode.
func (b *EventBus) DispatchObjectAdded(ctx context.Context, obj *content.Object, viewMode string) (*content.Object, string) {
	if len(b.added) == 0 {
		return obj, viewMode
	}
	ev := &ObjectAddedEvent{Object: obj, ViewMode: viewMode}
	for _, l := range b.added {
		l(ctx, ev)
	}
	if ev.Object == nil {
		ev.Object = obj
	}
	return ev.Object, ev.ViewMode
}

// DispatchObjectNormalized returns the possibly replaced record.
func (b *EventBus) DispatchObjectNormalized(ctx context.Context, obj *content.Object, viewMode string, rec Record) Record {
	if len(b.normalized) == 0 {
		return rec
	}
	ev := &ObjectNormalizedEvent{Object: obj, ViewMode: viewMode, Record: rec}
	for _, l := range b.normalized {
		l(ctx, ev)
	}
	return ev.Record
}
