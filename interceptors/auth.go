package interceptors

import (
	"context"

	"github.com/Keksclan/rawrguild/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")

// authenticate runs fn against the incoming metadata. Errors that are not
// already gRPC statuses are reported as Unauthenticated so token details
// never reach the caller.
func authenticate(ctx context.Context, fn auth.AuthFunc, fullMethod string) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	out, err := fn(ctx, fullMethod, md)
	if err == nil {
		return out, nil
	}
	if _, ok := status.FromError(err); ok {
		return nil, err
	}
	return nil, errUnauthenticated
}

// AuthUnary rejects unary calls that fn does not authenticate. The handler
// sees the context fn returned, typically carrying a contextx.Caller.
func AuthUnary(fn auth.AuthFunc) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, fn, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// AuthStream is the streaming counterpart of AuthUnary.
func AuthStream(fn auth.AuthFunc) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), fn, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}
