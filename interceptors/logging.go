package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrguild/contextx"
	"github.com/Keksclan/rawrguild/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ObserveUnary logs every unary call and counts it on rec. Either may be nil.
// Server-side faults log at error level, everything else at debug.
func ObserveUnary(logger *slog.Logger, rec *metrics.Recorder) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		rec.ObserveRPC(info.FullMethod, code.String())
		if logger != nil {
			level := slog.LevelDebug
			switch code {
			case codes.Internal, codes.Unknown, codes.DataLoss:
				level = slog.LevelError
			case codes.Unavailable:
				level = slog.LevelWarn
			}
			attrs := append([]slog.Attr{
				slog.String("method", info.FullMethod),
				slog.String("code", code.String()),
				slog.Duration("duration", time.Since(start)),
			}, contextx.LogAttrs(ctx)...)
			logger.LogAttrs(ctx, level, "rpc", attrs...)
		}
		return resp, err
	}
}
