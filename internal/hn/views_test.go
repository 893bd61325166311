package hn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/headless/internal/content"
)

func display(vm string, hidden ...string) *content.Display {
	d := content.EmptyDisplay("node", "page", vm)
	d.Hidden = hidden
	return d
}

func TestHiddenFieldsIntersection(t *testing.T) {
	e := newEntityWithViews(&content.Object{UUID: "x", Category: "node", Variant: "page"})

	assert.Equal(t, []string{}, e.HiddenFields())

	assert.True(t, e.AddViewMode("full", display("full", "f1", "f3")))
	assert.Equal(t, []string{"f1", "f3"}, e.HiddenFields())

	assert.True(t, e.AddViewMode("teaser", display("teaser", "f2", "f3")))
	assert.Equal(t, []string{"f3"}, e.HiddenFields())
	assert.Equal(t, []string{"full", "teaser"}, e.ViewModes())
}

func TestHiddenFieldsDisjointViewModes(t *testing.T) {
	e := newEntityWithViews(&content.Object{UUID: "x"})
	e.AddViewMode("full", display("full", "f1"))
	e.AddViewMode("teaser", display("teaser", "f2"))
	assert.Empty(t, e.HiddenFields())
}

func TestAddViewModeTwice(t *testing.T) {
	e := newEntityWithViews(&content.Object{UUID: "x"})
	assert.True(t, e.AddViewMode("default", nil))
	assert.False(t, e.AddViewMode("default", display("default", "body")))
	assert.Empty(t, e.HiddenFields(), "the first display is kept")
	assert.NotNil(t, e.Display("default"))
	assert.Nil(t, e.Display("teaser"))
}

func TestViewRegistryKeepsFirstObject(t *testing.T) {
	r := newViewRegistry()
	first := &content.Object{UUID: "x", ID: "1"}
	e, added := r.add(first, "default", nil)
	assert.True(t, added)
	assert.Same(t, first, e.Object())

	e2, added := r.add(&content.Object{UUID: "x", ID: "1"}, "teaser", nil)
	assert.True(t, added)
	assert.Same(t, e, e2)
	assert.Same(t, first, e2.Object())
	assert.Nil(t, r.get("y"))
}
