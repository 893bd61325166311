package content

import (
	"context"
	"sort"
	"strings"
)

// Permission names checked by the engine and the stores.
const (
	PermAccessContent   = "access content"
	PermViewUnpublished = "view unpublished content"
	PermUseGraph        = "use content graph"
)

// Account is the caller a response is built for.
type Account struct {
	ID          string
	Permissions map[string]bool
}

// NewAccount returns an account holding perms.
func NewAccount(id string, perms ...string) Account {
	a := Account{ID: id, Permissions: make(map[string]bool, len(perms))}
	for _, p := range perms {
		a.Permissions[p] = true
	}
	return a
}

// HasPermission reports whether the account holds perm.
func (a Account) HasPermission(perm string) bool {
	return a.Permissions[perm]
}

// CacheContext returns a stable string for the account's permission set.
// Accounts with equal permissions share cached responses.
func (a Account) CacheContext() string {
	perms := make([]string, 0, len(a.Permissions))
	for p, ok := range a.Permissions {
		if ok {
			perms = append(perms, p)
		}
	}
	sort.Strings(perms)
	return strings.Join(perms, ",")
}

type accountKey struct{}

// WithAccount stores the account on ctx.
func WithAccount(ctx context.Context, a Account) context.Context {
	return context.WithValue(ctx, accountKey{}, a)
}

// AccountFrom returns the account stored on ctx, or an anonymous account
// without permissions.
func AccountFrom(ctx context.Context) Account {
	if a, ok := ctx.Value(accountKey{}).(Account); ok {
		return a
	}
	return NewAccount("anonymous")
}
