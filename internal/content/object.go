// Package content defines the content model the graph engine walks and the
// store interfaces it consumes.
package content

// Reference display formatter that expands referenced objects in a view mode.
const FormatterEntityView = "entity_reference_entity_view"

// DefaultViewMode is used whenever no view mode is configured.
const DefaultViewMode = "default"

// CollectionCategory is the category of collection view objects.
const CollectionCategory = "view"

// Object is a single addressable unit of content. Stores hand out a fresh
// Object per load, so callers may clear field values in memory.
type Object struct {
	UUID         string
	Category     string
	Variant      string
	ID           string
	Langcode     string
	Translatable bool
	// Config marks configuration objects (collection views), which carry
	// Settings instead of fields.
	Config    bool
	Published bool
	Alias     string
	Fields    []*Field
	Settings  map[string]any
	Tags      []string
}

// Fieldable reports whether the object carries fields.
func (o *Object) Fieldable() bool {
	return !o.Config
}

// Field returns the named field or nil.
func (o *Object) Field(name string) *Field {
	for _, f := range o.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Clone returns a deep copy of the object's field values.
func (o *Object) Clone() *Object {
	c := *o
	c.Fields = make([]*Field, len(o.Fields))
	for i, f := range o.Fields {
		fc := *f
		fc.Values = append([]any(nil), f.Values...)
		fc.Refs = append([]Ref(nil), f.Refs...)
		c.Fields[i] = &fc
	}
	c.Tags = append([]string(nil), o.Tags...)
	return &c
}

// Field is one named field of an object.
type Field struct {
	Name      string `json:"name"`
	Multiple  bool   `json:"multiple,omitempty"`
	Reference bool   `json:"reference,omitempty"`
	Values    []any  `json:"values,omitempty"`
	Refs      []Ref  `json:"refs,omitempty"`
}

// Clear nulls the in-memory value so it is not normalized.
func (f *Field) Clear() {
	f.Values = nil
	f.Refs = nil
}

// IsEmpty reports whether the field holds no items.
func (f *Field) IsEmpty() bool {
	if f.Reference {
		return len(f.Refs) == 0
	}
	return len(f.Values) == 0
}

// Ref points at another object.
type Ref struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	UUID     string `json:"uuid,omitempty"`
}

// Key returns the "category/id" form used in documents and routes.
func (r Ref) Key() string {
	return r.Category + "/" + r.ID
}
