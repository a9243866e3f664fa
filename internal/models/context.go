package models

import "context"

type callerContextKey struct{}

// Caller identifies who is calling: a business via API key, or a dashboard
// user resolved from a bearer token.
type Caller struct {
	ApiKey  string
	OwnerId string
}

// WithCaller attaches the resolved caller to a context.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// GetCaller retrieves the caller from context, or nil if absent.
func GetCaller(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerContextKey{}).(*Caller)
	return c
}
