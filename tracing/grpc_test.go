package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/Keksclan/rawrguild/contextx"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUnaryServerSpan(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		err        error
		wantCode   string
		wantStatus codes.Code
		service    string
		rpcMethod  string
	}{
		{"ok", "/rawr.Economy/Balance", nil, "OK", codes.Ok, "rawr.Economy", "Balance"},
		{"status error", "/rawr.Economy/Transfer", status.Error(grpccodes.FailedPrecondition, "insufficient funds"), "FailedPrecondition", codes.Error, "rawr.Economy", "Transfer"},
		{"plain error", "/rawr.Health/Check", errors.New("boom"), "Unknown", codes.Error, "rawr.Health", "Check"},
		{"no slash", "odd", nil, "OK", codes.Ok, "odd", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, rec := newTestConfig(t)
			ic := UnaryServerInterceptor(cfg)

			_, err := ic(t.Context(), "req", &grpc.UnaryServerInfo{FullMethod: tt.method}, func(context.Context, any) (any, error) {
				return "ok", tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("error not passed through: %v", err)
			}

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			s := spans[0]
			if s.Name() != tt.method || s.SpanKind() != trace.SpanKindServer {
				t.Fatalf("span %q kind %v", s.Name(), s.SpanKind())
			}
			if s.Status().Code != tt.wantStatus {
				t.Fatalf("status = %v, want %v", s.Status().Code, tt.wantStatus)
			}
			for key, want := range map[string]string{
				"rpc.system":           "grpc",
				"rpc.service":          tt.service,
				"rpc.method":           tt.rpcMethod,
				"rpc.grpc.status_code": tt.wantCode,
			} {
				if got, _ := attrOf(s.Attributes(), key); got != want {
					t.Errorf("%s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestUnaryServerSpanContinuesTrace(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := UnaryServerInterceptor(cfg)

	md := metadata.Pairs("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := contextx.WithRequestID(metadata.NewIncomingContext(t.Context(), md), "req-1")

	_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/rawr.Economy/Balance"}, func(context.Context, any) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	s := rec.Ended()[0]
	if got := s.SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace id = %s", got)
	}
	if id, _ := attrOf(s.Attributes(), "rawrguild.request_id"); id != "req-1" {
		t.Fatalf("request_id = %q", id)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamServerSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := StreamServerInterceptor(cfg)

	var inner context.Context
	err := ic(nil, &fakeStream{ctx: t.Context()}, &grpc.StreamServerInfo{FullMethod: "/rawr.Guild/Watch"}, func(_ any, ss grpc.ServerStream) error {
		inner = ss.Context()
		return errors.New("stream failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Fatalf("status = %v", s.Status().Code)
	}
	if svc, _ := attrOf(s.Attributes(), "rpc.service"); svc != "rawr.Guild" {
		t.Fatalf("rpc.service = %q", svc)
	}
	if !trace.SpanContextFromContext(inner).Equal(s.SpanContext()) {
		t.Fatal("handler stream does not carry the server span")
	}
}

func TestNilConfigPassesThrough(t *testing.T) {
	resp, err := UnaryServerInterceptor(nil)(t.Context(), "hello", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	if err != nil || resp != "hello" {
		t.Fatalf("got %v, %v", resp, err)
	}

	called := false
	err = StreamServerInterceptor(nil)(nil, &fakeStream{ctx: t.Context()}, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("stream handler called=%v err=%v", called, err)
	}
}
