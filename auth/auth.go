// Package auth provides the authentication function type used by the
// optional authentication middleware, and a static bearer-token
// implementation for the bot and dashboard callers.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/Keksclan/rawrguild/contextx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthFunc is a user-supplied callback that authenticates a gRPC request.
// It receives the request context, the full method name, and the incoming
// metadata. On success it returns a (possibly enriched) context; on failure
// it returns an error.
type AuthFunc func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error)

// ErrMissingToken is returned when no bearer token is present.
var ErrMissingToken = errors.New("auth: missing bearer token")

// StaticTokens authenticates "authorization: Bearer <token>" against a fixed
// token table and stores the matching Caller in the context.
func StaticTokens(tokens map[string]contextx.Caller) AuthFunc {
	return func(ctx context.Context, _ string, md metadata.MD) (context.Context, error) {
		token, ok := bearer(md)
		if !ok {
			return ctx, ErrMissingToken
		}
		for known, caller := range tokens {
			if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
				return contextx.WithCaller(ctx, caller), nil
			}
		}
		return ctx, status.Error(codes.Unauthenticated, "unknown token")
	}
}

// RequireScopes wraps fn so that a method mapped to a scope by required is
// only served to callers holding that scope. Methods mapped to "" are open to
// any authenticated caller.
func RequireScopes(fn AuthFunc, required func(fullMethod string) string) AuthFunc {
	return func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error) {
		ctx, err := fn(ctx, fullMethod, md)
		if err != nil {
			return ctx, err
		}
		scope := required(fullMethod)
		if scope == "" {
			return ctx, nil
		}
		if c, ok := contextx.CallerFromContext(ctx); !ok || !c.Can(scope) {
			return ctx, status.Errorf(codes.PermissionDenied, "missing scope %q", scope)
		}
		return ctx, nil
	}
}

func bearer(md metadata.MD) (string, bool) {
	for _, v := range md.Get("authorization") {
		scheme, token, ok := strings.Cut(v, " ")
		if ok && strings.EqualFold(scheme, "bearer") && token != "" {
			return token, true
		}
	}
	return "", false
}
