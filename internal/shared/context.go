package shared

import "context"

// Actor identifies the authenticated caller as resolved by the external
// dispatch layer. The core trusts these values; it performs no identity checks
// of its own.
type Actor struct {
	ID       int64
	BranchID int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
