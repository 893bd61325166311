package content

// Component is the display configuration of one field.
type Component struct {
	Type     string `json:"type" yaml:"type"`
	ViewMode string `json:"view_mode,omitempty" yaml:"view_mode"`
}

// Display scopes which fields of a category/variant are visible in a view
// mode and how referenced objects are expanded.
type Display struct {
	Category   string
	Variant    string
	ViewMode   string
	Hidden     []string
	Components map[string]Component
}

// EmptyDisplay returns a display that hides nothing.
func EmptyDisplay(category, variant, viewMode string) *Display {
	return &Display{
		Category:   category,
		Variant:    variant,
		ViewMode:   viewMode,
		Hidden:     []string{},
		Components: map[string]Component{},
	}
}

// IsHidden reports whether field is hidden in this display.
func (d *Display) IsHidden(field string) bool {
	for _, h := range d.Hidden {
		if h == field {
			return true
		}
	}
	return false
}

// ReferenceViewMode returns the view mode referenced objects of field are
// expanded with.
func (d *Display) ReferenceViewMode(field string) string {
	if d == nil {
		return DefaultViewMode
	}
	c, ok := d.Components[field]
	if !ok || c.Type != FormatterEntityView || c.ViewMode == "" {
		return DefaultViewMode
	}
	return c.ViewMode
}
