// Package actor provides the request-scoped identity used for audit stamping.
//
// The actor is always supplied by the caller (HTTP middleware, CLI entry point,
// test setup) and threaded through context. Repositories never default it.
package actor

import (
	"context"
)

// Actor identifies who performs a mutating operation.
type Actor struct {
	// ID is the stable user identifier stamped into audit fields.
	ID string

	// Name is an optional display name for logs.
	Name string
}

type actorKey struct{}

// With adds the actor to context.
func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// From returns the actor from context.
func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || a.ID == "" {
		return Actor{}, false
	}
	return a, true
}

// ID returns the actor ID from context or empty string.
func ID(ctx context.Context) string {
	a, _ := From(ctx)
	return a.ID
}
