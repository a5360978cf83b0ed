package core

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnary folds interceptors into one; the first element is outermost.
// It returns nil for an empty slice.
func ChainUnary(interceptors []grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	switch len(interceptors) {
	case 0:
		return nil
	case 1:
		return interceptors[0]
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return interceptors[0](ctx, req, info, unaryTail(interceptors[1:], info, handler))
	}
}

func unaryTail(rest []grpc.UnaryServerInterceptor, info *grpc.UnaryServerInfo, final grpc.UnaryHandler) grpc.UnaryHandler {
	if len(rest) == 0 {
		return final
	}
	return func(ctx context.Context, req any) (any, error) {
		return rest[0](ctx, req, info, unaryTail(rest[1:], info, final))
	}
}

// ChainStream is the streaming counterpart of ChainUnary.
func ChainStream(interceptors []grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	switch len(interceptors) {
	case 0:
		return nil
	case 1:
		return interceptors[0]
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return interceptors[0](srv, ss, info, streamTail(interceptors[1:], info, handler))
	}
}

func streamTail(rest []grpc.StreamServerInterceptor, info *grpc.StreamServerInfo, final grpc.StreamHandler) grpc.StreamHandler {
	if len(rest) == 0 {
		return final
	}
	return func(srv any, ss grpc.ServerStream) error {
		return rest[0](srv, ss, info, streamTail(rest[1:], info, final))
	}
}
