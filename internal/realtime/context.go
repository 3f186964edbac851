package realtime

import (
	"context"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

type actorContextKey struct{}

func withActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(models.Actor)
	return actor, ok
}
