// Package stripfields removes configured fields from every graph record.
package stripfields

import (
	"context"

	"github.com/starford/headless/internal/hn"
)

// Identity keys survive stripping.
var protected = map[string]bool{
	"uuid":     true,
	"id":       true,
	"langcode": true,
	"type":     true,
}

// Subscriber strips fields per object category.
type Subscriber struct {
	fields map[string][]string
}

// New returns a subscriber stripping fields[category] from objects of that
// category.
func New(fields map[string][]string) *Subscriber {
	clean := make(map[string][]string, len(fields))
	for category, names := range fields {
		for _, n := range names {
			if !protected[n] {
				clean[category] = append(clean[category], n)
			}
		}
	}
	return &Subscriber{fields: clean}
}

func (s *Subscriber) Subscribe(bus *hn.EventBus) {
	if len(s.fields) == 0 {
		return
	}
	bus.OnObjectAdded(s.clearValues)
	bus.OnObjectNormalized(s.dropKeys)
}

// clearValues empties the fields before normalization so nothing behind them
// is loaded or followed.
func (s *Subscriber) clearValues(_ context.Context, ev *hn.ObjectAddedEvent) {
	for _, name := range s.fields[ev.Object.Category] {
		if f := ev.Object.Field(name); f != nil {
			f.Clear()
		}
	}
}

func (s *Subscriber) dropKeys(_ context.Context, ev *hn.ObjectNormalizedEvent) {
	for _, name := range s.fields[ev.Object.Category] {
		delete(ev.Record, name)
	}
}

var _ hn.Subscriber = (*Subscriber)(nil)

// Fields returns the configured fields of category.
func (s *Subscriber) Fields(category string) []string {
	return append([]string(nil), s.fields[category]...)
}
