package audit

import (
	"context"
	"strings"
)

// ActorResolver returns the identifier of the principal performing the current write.
type ActorResolver interface {
	CurrentActor(ctx context.Context) (string, error)
}

// ActorFunc adapts a plain function to ActorResolver.
type ActorFunc func(ctx context.Context) (string, error)

func (f ActorFunc) CurrentActor(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticActor always resolves to the same actor.
type StaticActor string

func (a StaticActor) CurrentActor(context.Context) (string, error) {
	return string(a), nil
}

type actorKey struct{}

// WithActor returns a context carrying actor for ContextActor to pick up.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	if !ok || strings.TrimSpace(actor) == "" {
		return "", false
	}
	return actor, true
}

// ContextActor resolves the actor stored in the context and defers to
// Fallback when the context carries none.
type ContextActor struct {
	Fallback ActorResolver
}

func (c ContextActor) CurrentActor(ctx context.Context) (string, error) {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor, nil
	}
	if c.Fallback == nil {
		return "", ErrNoActor
	}
	return c.Fallback.CurrentActor(ctx)
}
