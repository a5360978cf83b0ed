package rawrguild

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Keksclan/rawrguild/contextx"
	"github.com/Keksclan/rawrguild/interceptors"
	"github.com/Keksclan/rawrguild/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestWithRecoveryRegistersMiddleware(t *testing.T) {
	var cfg config
	WithRecovery()(&cfg)
	if !cfg.recovery {
		t.Fatal("WithRecovery did not enable recovery")
	}
}

func TestRecoveryConvertsHandlerPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s := newTestServer(t,
		WithRecovery(),
		WithLogger(logger),
		WithUnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			if contextx.RequestIDFromContext(ctx) == "" {
				t.Error("request id missing inside the chain")
			}
			panic("boom")
		}),
	)
	s.RegisterServices()
	conn := dial(t, s)

	var header metadata.MD
	err := conn.Invoke(t.Context(), "/"+rpc.HealthServiceName+"/Check", &rpc.HealthRequest{}, new(rpc.HealthResponse), grpc.Header(&header))

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", st.Code())
	}
	if len(header.Get(interceptors.RequestIDHeader)) == 0 {
		t.Fatal("expected a request id response header")
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("panic was not logged: %s", buf.String())
	}
}
