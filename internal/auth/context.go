package auth

import (
	"context"
	"errors"
)

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller identity placed by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, error) {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok && id.UserID != "" {
		return id, nil
	}
	return Identity{}, ErrNoIdentity
}
