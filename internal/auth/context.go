package auth

import (
	"context"
)

type ctxKey string

const (
	claimsKey ctxKey = "accountClaims"
)

type Claims struct {
	AccountID uint
	Username  string
	Role      string
	JWTID     string
}

func (c Claims) HasRole(role string) bool {
	return c.Role == role
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(claimsKey).(Claims); ok {
		return v
	}
	return Claims{}
}

// Actor returns the authenticated account id, or nil for anonymous requests.
func Actor(ctx context.Context) *uint {
	c := FromContext(ctx)
	if c.AccountID == 0 {
		return nil
	}
	id := c.AccountID
	return &id
}
