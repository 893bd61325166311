// Package hn builds normalized content graphs: one request path is resolved
// to a root object, every object reachable through rendered references is
// flattened into a single uuid-keyed map, and the result is cached by tag.
package hn

import "encoding/json"

// MetaKey is the record key engine metadata is stored under.
const MetaKey = "__meta"

// Record is the normalized form of one object.
type Record map[string]any

// Meta returns the record's metadata map, creating it when missing.
func (r Record) Meta() map[string]any {
	if m, ok := r[MetaKey].(map[string]any); ok {
		return m
	}
	m := make(map[string]any)
	r[MetaKey] = m
	return m
}

// Response is the graph returned for one request.
type Response struct {
	Data   map[string]Record `json:"data" cbor:"data"`
	Paths  map[string]string `json:"paths" cbor:"paths"`
	Status int               `json:"status" cbor:"status"`
	// Meta holds response level metadata such as the debug log.
	Meta map[string]any `json:"__meta,omitempty" cbor:"meta,omitempty"`
	// Extra holds top-level keys added by subscribers.
	Extra map[string]any `json:"-" cbor:"extra,omitempty"`
}

// NewResponse returns an empty graph.
func NewResponse() *Response {
	return &Response{
		Data:  make(map[string]Record),
		Paths: make(map[string]string),
	}
}

// Set stores an extra top-level key.
func (r *Response) Set(key string, v any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = v
}

// MarshalJSON flattens extras next to data, paths and status. The fixed keys
// always win.
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	data := r.Data
	if data == nil {
		data = map[string]Record{}
	}
	paths := r.Paths
	if paths == nil {
		paths = map[string]string{}
	}
	out["data"] = data
	out["paths"] = paths
	out["status"] = r.Status
	if len(r.Meta) > 0 {
		out[MetaKey] = r.Meta
	}
	return json.Marshal(out)
}
