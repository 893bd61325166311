package parser

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/headless/internal/content"
)

// Fields every content document may carry.
const (
	FieldTitle     = "title"
	FieldBody      = "body"
	FieldBodyLinks = "body_links"
	FieldTags      = "tags"
)

// DefaultCategory is used when a content document has no type.
const DefaultCategory = "node"

var identityNamespace = uuid.MustParse("8f0d6a56-2b0e-4b8e-9c55-4e0fd6e4c1a1")

// ObjectUUID derives the stable identity of an object that declares none.
// Translations share it.
func ObjectUUID(category, id string) string {
	return uuid.NewSHA1(identityNamespace, []byte(category+"/"+id)).String()
}

// ParseRef parses "category/id". A bare id refers to a node.
func ParseRef(s string) (content.Ref, bool) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return content.Ref{}, false
	}
	category, id, ok := strings.Cut(s, "/")
	if !ok {
		return content.Ref{Category: DefaultCategory, ID: s}, true
	}
	if category == "" || id == "" || strings.Contains(id, "/") {
		return content.Ref{}, false
	}
	return content.Ref{Category: category, ID: id}, true
}

// ParseObject turns a content document into an object. Missing keys fall
// back to: type node, bundle = type, id = file name, langcode = defaultLang.
//
// Field order is title, the frontmatter "fields" and "references" in
// document order, body, body_links, tags.
func ParseObject(docPath string, data []byte, defaultLang string) (*content.Object, *Result, error) {
	res, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	fm := res.Frontmatter

	obj := &content.Object{
		Category:     stringOr(fm["type"], DefaultCategory),
		ID:           stringOr(fm["id"], strings.TrimSuffix(path.Base(docPath), path.Ext(docPath))),
		Langcode:     stringOr(fm["langcode"], defaultLang),
		Translatable: boolOr(fm["translatable"], true),
		Published:    boolOr(fm["published"], true),
		Tags:         stringList(fm["cache_tags"]),
	}
	obj.Variant = stringOr(fm["bundle"], obj.Category)
	obj.UUID = stringOr(fm["uuid"], ObjectUUID(obj.Category, obj.ID))
	if alias := stringOr(fm["path"], ""); alias != "" {
		obj.Alias = "/" + strings.Trim(alias, "/")
	}
	if obj.Category == content.CollectionCategory {
		return nil, nil, fmt.Errorf("parser: %s: collection views belong in config documents", docPath)
	}

	obj.Fields = append(obj.Fields, &content.Field{Name: FieldTitle, Values: []any{res.Title}})
	obj.Fields = append(obj.Fields, mappingFields(res.node, "fields", valueField)...)
	obj.Fields = append(obj.Fields, mappingFields(res.node, "references", referenceField)...)
	if body := strings.TrimSpace(res.Body); body != "" {
		obj.Fields = append(obj.Fields, &content.Field{Name: FieldBody, Values: []any{res.Body}})
	}
	if links := linkRefs(res.Links); len(links) > 0 {
		obj.Fields = append(obj.Fields, &content.Field{Name: FieldBodyLinks, Multiple: true, Reference: true, Refs: links})
	}
	if len(res.Tags) > 0 {
		tags := make([]any, len(res.Tags))
		for i, t := range res.Tags {
			tags[i] = t
		}
		obj.Fields = append(obj.Fields, &content.Field{Name: FieldTags, Multiple: true, Values: tags})
	}
	return obj, res, nil
}

// mappingFields walks the mapping under key in document order.
func mappingFields(root *yaml.Node, key string, build func(name string, n *yaml.Node) *content.Field) []*content.Field {
	m := child(root, key)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	var out []*content.Field
	for i := 0; i+1 < len(m.Content); i += 2 {
		name := m.Content[i].Value
		if name == "" || name == FieldTitle || name == FieldBody {
			continue
		}
		if f := build(name, m.Content[i+1]); f != nil {
			out = append(out, f)
		}
	}
	return out
}

func child(root *yaml.Node, key string) *yaml.Node {
	if root == nil || root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			return root.Content[i+1]
		}
	}
	return nil
}

func valueField(name string, n *yaml.Node) *content.Field {
	f := &content.Field{Name: name}
	if n.Kind == yaml.SequenceNode {
		f.Multiple = true
		for _, item := range n.Content {
			var v any
			if err := item.Decode(&v); err == nil {
				f.Values = append(f.Values, v)
			}
		}
		return f
	}
	var v any
	if err := n.Decode(&v); err != nil || v == nil {
		return f
	}
	f.Values = []any{v}
	return f
}

func referenceField(name string, n *yaml.Node) *content.Field {
	f := &content.Field{Name: name, Reference: true}
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		f.Multiple = true
		items = n.Content
	}
	for _, item := range items {
		if item.Kind != yaml.ScalarNode {
			continue
		}
		if r, ok := ParseRef(item.Value); ok {
			f.Refs = append(f.Refs, r)
		}
	}
	return f
}

func linkRefs(links []string) []content.Ref {
	var out []content.Ref
	for _, l := range links {
		if !strings.Contains(l, "/") {
			continue
		}
		if r, ok := ParseRef(l); ok {
			out = append(out, r)
		}
	}
	return out
}

func stringOr(v any, fallback string) string {
	switch s := v.(type) {
	case string:
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	case int:
		return fmt.Sprint(s)
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func stringList(v any) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
