package hn

import (
	"context"
	"fmt"

	"github.com/starford/headless/internal/content"
)

// FieldableHandler is the catch-all handler for objects with fields.
type FieldableHandler struct{}

func (FieldableHandler) ID() string { return "fieldable" }

func (FieldableHandler) Supports(obj *content.Object) bool { return obj.Fieldable() }

// Handle normalizes obj in viewMode. Fields hidden in every view mode
// requested so far, and fields the account may not see, are left out and
// listed under __meta.hidden_fields. Referenced objects rendered through an
// entity view formatter are added in the formatter's view mode.
func (FieldableHandler) Handle(ctx context.Context, b *Builder, obj *content.Object, viewMode string) (Record, error) {
	store := b.Store()
	account := b.Account()

	if !store.CanView(ctx, account, obj) {
		b.Logf("Not adding %s %s, no permission.", obj.Category, obj.UUID)
		return nil, nil
	}

	views, added, err := b.RegisterView(ctx, obj, viewMode)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, nil
	}
	b.Logf("Adding %s %s in view mode %s.", obj.Category, obj.UUID, viewMode)

	hidden := make(map[string]bool)
	for _, name := range views.HiddenFields() {
		hidden[name] = true
	}
	suppressed := make(map[string]bool)
	for _, f := range obj.Fields {
		if hidden[f.Name] || !store.CanViewField(ctx, account, obj, f) {
			suppressed[f.Name] = true
			f.Clear()
		}
	}

	normalized, err := store.Normalize(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("hn: normalize %s: %w", obj.UUID, err)
	}
	rec := make(Record, len(normalized)+1)
	for k, v := range normalized {
		rec[k] = v
	}
	rec[MetaKey] = map[string]any{}

	display := views.Display(viewMode)
	hiddenFields := []string{}
	for _, f := range obj.Fields {
		if suppressed[f.Name] {
			delete(rec, f.Name)
			hiddenFields = append(hiddenFields, f.Name)
			continue
		}
		if !f.Reference {
			continue
		}
		refs, err := store.ReferencedObjects(ctx, obj, f)
		if err != nil {
			b.Logf("Skipping references of %s.%s: %v", obj.UUID, f.Name, err)
			continue
		}
		refViewMode := display.ReferenceViewMode(f.Name)
		for _, ref := range refs {
			b.AddObject(ctx, ref, refViewMode)
		}
	}

	meta := rec.Meta()
	meta["view_modes"] = views.ViewModes()
	meta["hidden_fields"] = hiddenFields
	return rec, nil
}
