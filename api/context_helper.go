package api

import (
	"context"
	"time"

	"github.com/linesmerrill/court-case-portal/casework"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type contextKey int

const (
	actorKey contextKey = iota
	requestIDKey
)

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// WithActor stores the calling user on the context
func WithActor(ctx context.Context, actor casework.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the calling user set by ActorMiddleware
func ActorFrom(ctx context.Context) (casework.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(casework.Actor)
	return actor, ok
}

// WithRequestID stores the request id on the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id set by RequestLogMiddleware, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
