package auth

import (
	"context"

	"github.com/matemarket/matemarket/internal/domain"
)

type contextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the authenticated actor for the request, if any.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(domain.Actor)
	return actor, ok
}
