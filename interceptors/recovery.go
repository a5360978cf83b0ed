package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/Keksclan/rawrguild/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errInternal = status.Error(codes.Internal, "internal server error")

// RecoveryUnary returns a unary server interceptor that recovers from panics,
// logs them with their stack and returns codes.Internal instead of crashing
// the process. A nil logger discards the report.
func RecoveryUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				reportPanic(ctx, logger, info.FullMethod, r)
				resp = nil
				err = errInternal
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStream is the streaming counterpart of RecoveryUnary.
func RecoveryStream(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				ctx := context.Background()
				if ss != nil {
					ctx = ss.Context()
				}
				reportPanic(ctx, logger, info.FullMethod, r)
				err = errInternal
			}
		}()
		return handler(srv, ss)
	}
}

func reportPanic(ctx context.Context, logger *slog.Logger, method string, value any) {
	if logger == nil {
		return
	}
	attrs := append([]slog.Attr{
		slog.String("method", method),
		slog.Any("panic", value),
		slog.String("stack", string(debug.Stack())),
	}, contextx.LogAttrs(ctx)...)
	logger.LogAttrs(ctx, slog.LevelError, "handler panicked", attrs...)
}
