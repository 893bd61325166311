// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid document")

	// ErrUnrouted is returned by a router when a path matches no route.
	ErrUnrouted = errors.New("path is not routed")
	// ErrNoCanonicalPath is returned for objects that have no URL of their
	// own, such as embedded sub-objects.
	ErrNoCanonicalPath = errors.New("object has no canonical path")
	// ErrNotAcceptable is returned for an unsupported response format.
	ErrNotAcceptable = errors.New("not acceptable")
)
