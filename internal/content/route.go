package content

import "strings"

// Route names with a fixed meaning.
const (
	RouteFront = "<front>"
)

// Route is the result of resolving a path.
type Route struct {
	Name     string
	Category string
	ID       string
}

// EntityRoute builds the canonical route of an object.
func EntityRoute(category, id string) Route {
	return Route{Name: "entity." + category + ".canonical", Category: category, ID: id}
}

// CollectionRoute builds the route of a collection view display.
func CollectionRoute(id, display string) Route {
	return Route{Name: "view." + id + "." + display}
}

// HasObject reports whether the route carries an object parameter.
func (r Route) HasObject() bool {
	return r.Category != "" && r.ID != ""
}

// Collection returns the collection view identifier of a "view.<id>.<display>"
// route.
func (r Route) Collection() (string, bool) {
	parts := strings.Split(r.Name, ".")
	if len(parts) < 2 || parts[0] != CollectionCategory || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Redirect maps an unrouted source path to a target.
type Redirect struct {
	Source   string
	Target   string
	Status   int
	Langcode string
}

// Language negotiation methods.
const (
	NegotiationNone       = "none"
	NegotiationPathPrefix = "path_prefix"
)

// LanguageSettings describe how the active language is selected.
type LanguageSettings struct {
	Method   string
	Default  string
	Prefixes map[string]string // langcode -> path prefix
}

// CollectionFilter narrows a collection query.
type CollectionFilter struct {
	Field string
	Value string
}

// CollectionQuery is the query a collection view executes.
type CollectionQuery struct {
	Category string
	Variant  string
	Langcode string
	Sort     string
	Order    string
	Limit    int
	Offset   int
	Filters  []CollectionFilter
}
