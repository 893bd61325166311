package hn

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/headless/internal/content"
)

// EntityHandler turns one object into a record. Handlers receive the builder
// so they can add referenced objects. A nil record without error means the
// object contributes nothing (no access, or the view mode was already
// handled).
type EntityHandler interface {
	ID() string
	Supports(obj *content.Object) bool
	Handle(ctx context.Context, b *Builder, obj *content.Object, viewMode string) (Record, error)
}

// ErrDuplicateHandler is returned when a handler id is registered twice.
var ErrDuplicateHandler = errors.New("hn: duplicate entity handler")

// HandlerRegistry selects the handler of an object. Specific handlers are
// consulted in registration order, the catch-all handler last.
type HandlerRegistry struct {
	handlers []EntityHandler
	catchAll EntityHandler
}

// NewHandlerRegistry returns a registry ending in catchAll. catchAll may be
// nil.
func NewHandlerRegistry(catchAll EntityHandler, handlers ...EntityHandler) (*HandlerRegistry, error) {
	r := &HandlerRegistry{catchAll: catchAll}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultHandlers returns the collection handler followed by the fieldable
// catch-all.
func DefaultHandlers() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: []EntityHandler{CollectionHandler{}},
		catchAll: FieldableHandler{},
	}
}

// Register adds h ahead of the catch-all handler.
func (r *HandlerRegistry) Register(h EntityHandler) error {
	if r.catchAll != nil && r.catchAll.ID() == h.ID() {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.ID())
	}
	for _, existing := range r.handlers {
		if existing.ID() == h.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.ID())
		}
	}
	r.handlers = append(r.handlers, h)
	return nil
}

// Handler returns the first handler supporting obj, or nil.
func (r *HandlerRegistry) Handler(obj *content.Object) EntityHandler {
	for _, h := range r.handlers {
		if h.Supports(obj) {
			return h
		}
	}
	if r.catchAll != nil && r.catchAll.Supports(obj) {
		return r.catchAll
	}
	return nil
}

// Handlers returns every handler in lookup order.
func (r *HandlerRegistry) Handlers() []EntityHandler {
	out := append([]EntityHandler{}, r.handlers...)
	if r.catchAll != nil {
		out = append(out, r.catchAll)
	}
	return out
}
