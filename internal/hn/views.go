package hn

import "github.com/starford/headless/internal/content"

// EntityWithViews tracks every view mode an object has been requested in
// during one build, together with the display of each.
type EntityWithViews struct {
	object   *content.Object
	modes    []string
	displays map[string]*content.Display
}

func newEntityWithViews(obj *content.Object) *EntityWithViews {
	return &EntityWithViews{object: obj, displays: make(map[string]*content.Display)}
}

// Object returns the object the views belong to.
func (e *EntityWithViews) Object() *content.Object { return e.object }

// AddViewMode registers viewMode. It returns false when the view mode was
// already registered.
func (e *EntityWithViews) AddViewMode(viewMode string, d *content.Display) bool {
	if e.HasViewMode(viewMode) {
		return false
	}
	if d == nil {
		d = content.EmptyDisplay(e.object.Category, e.object.Variant, viewMode)
	}
	e.modes = append(e.modes, viewMode)
	e.displays[viewMode] = d
	return true
}

func (e *EntityWithViews) HasViewMode(viewMode string) bool {
	_, ok := e.displays[viewMode]
	return ok
}

// ViewModes returns the registered view modes in registration order.
func (e *EntityWithViews) ViewModes() []string {
	return append([]string{}, e.modes...)
}

// Display returns the display registered for viewMode or nil.
func (e *EntityWithViews) Display(viewMode string) *content.Display {
	return e.displays[viewMode]
}

// HiddenFields returns the fields hidden in every registered view mode, in
// the order of the first view mode's hidden list. A field shown by any view
// mode is never hidden.
func (e *EntityWithViews) HiddenFields() []string {
	out := []string{}
	if len(e.modes) == 0 {
		return out
	}
	for _, field := range e.displays[e.modes[0]].Hidden {
		hiddenEverywhere := true
		for _, vm := range e.modes[1:] {
			if !e.displays[vm].IsHidden(field) {
				hiddenEverywhere = false
				break
			}
		}
		if hiddenEverywhere {
			out = append(out, field)
		}
	}
	return out
}

// viewRegistry maps an object uuid to its views for one build.
type viewRegistry struct {
	entries map[string]*EntityWithViews
}

func newViewRegistry() *viewRegistry {
	return &viewRegistry{entries: make(map[string]*EntityWithViews)}
}

func (r *viewRegistry) get(uuid string) *EntityWithViews {
	return r.entries[uuid]
}

// add registers viewMode for obj. The object of the first registration is
// kept.
func (r *viewRegistry) add(obj *content.Object, viewMode string, d *content.Display) (*EntityWithViews, bool) {
	e, ok := r.entries[obj.UUID]
	if !ok {
		e = newEntityWithViews(obj)
		r.entries[obj.UUID] = e
	}
	return e, e.AddViewMode(viewMode, d)
}
