package middleware

import (
	"context"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor inventory.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the actor seeded by Auth. The zero Actor is
// returned for unauthenticated requests and fails Actor.Validate.
func ActorFromContext(ctx context.Context) (inventory.Actor, bool) {
	if ctx == nil {
		return inventory.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(inventory.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID.String()
}

func WarehouseIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.WarehouseID == nil {
		return ""
	}
	return actor.WarehouseID.String()
}
