// Package env provides the registry's Environment implementations: the real
// host environment and a fixed test double. Business logic only ever sees the
// interface, never the host accessors themselves.
package env

import (
	"context"
	"time"

	"propspace/space-portal/space-portal-backend/internal/auth"
	"propspace/space-portal/space-portal-backend/internal/registry"
)

// Host is the production environment: real clock, caller taken from the
// authenticated request context.
type Host struct{}

func (Host) Now() time.Time { return time.Now() }

func (Host) Caller(ctx context.Context) registry.AccountID {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return registry.AnonymousAccount
	}
	return caller
}

// Static is the test double: fixed time and identity, ignoring the context
// unless a caller was explicitly injected into it.
type Static struct {
	Time    time.Time
	Account registry.AccountID
}

func (s Static) Now() time.Time { return s.Time }

func (s Static) Caller(ctx context.Context) registry.AccountID {
	if caller, ok := auth.CallerFromContext(ctx); ok {
		return caller
	}
	return s.Account
}
