package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	assert.Empty(t, RequestIDFromContext(WithRequestID(context.Background(), "  ")))
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), ActorTypeUser, "admin-7")
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, ActorTypeUser, actorType)
	assert.Equal(t, "admin-7", actorID)

	actorType, actorID = ActorFromContext(context.Background())
	assert.Empty(t, actorType)
	assert.Empty(t, actorID)
}
