package testutil

import (
	"context"
	"time"

	id "sentra/pkg/domain"
	"sentra/pkg/requestcontext"
)

// Context layers an actor identity onto parent, the way the Actor middleware
// does for authenticated requests.
func Context(parent context.Context, actor id.ActorID, role id.Role) context.Context {
	ctx := requestcontext.WithActorID(parent, actor)
	return requestcontext.WithActorRole(ctx, role)
}

// ContextAt builds a context carrying an actor identity and a pinned clock so
// time-sensitive rules are deterministic under test.
func ContextAt(actor id.ActorID, role id.Role, at time.Time) context.Context {
	return requestcontext.WithTime(Context(context.Background(), actor, role), at)
}
