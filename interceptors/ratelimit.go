package interceptors

import (
	"context"

	"github.com/Keksclan/rawrguild/contextx"
	"github.com/Keksclan/rawrguild/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// CallerKey keys rate-limit buckets by the authenticated caller, falling back
// to the method for anonymous requests.
func CallerKey(ctx context.Context, fullMethod string) string {
	if c, ok := contextx.CallerFromContext(ctx); ok && c.ID != "" {
		return "caller:" + c.ID
	}
	return "method:" + fullMethod
}

// RateLimitUnary returns a unary server interceptor that rejects requests
// once the bucket l selects for the call is exhausted. l is typically a
// *ratelimit.Grouped driven by the server's method policies.
func RateLimitUnary(l ratelimit.Allower) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !l.Allow(ctx, info.FullMethod) {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}

// RateLimitStream is the streaming counterpart of RateLimitUnary.
func RateLimitStream(l ratelimit.Allower) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if !l.Allow(ss.Context(), info.FullMethod) {
			return errRateLimited
		}
		return handler(srv, ss)
	}
}
