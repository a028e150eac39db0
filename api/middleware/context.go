package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext builds the event actor for the authenticated caller, or nil
// when the request carries no parseable user.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: RoleFromContext(ctx)}
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
