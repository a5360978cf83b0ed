package contextx

import (
	"context"
	"slices"
)

// Caller is the authenticated client behind a request, such as the Discord bot
// or the dashboard backend. It is stored by the auth interceptor and used as
// the rate-limit key.
type Caller struct {
	ID     string
	Scopes []string
}

// Can reports whether the caller holds scope.
func (c Caller) Can(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// WithCaller returns a derived context that carries c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the Caller stored in ctx.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}
