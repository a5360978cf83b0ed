// Package rpc exposes the ledger and server health over gRPC. Services are
// registered through hand-written [grpc.ServiceDesc] values so no protobuf
// code generation is required; messages are plain Go structs carried as JSON
// by a codec that still delegates real protobuf messages to the proto codec.
package rpc

import (
	"context"

	"github.com/Keksclan/rawrguild/policy"
	"google.golang.org/grpc"
)

const (
	EconomyServiceName = "rawr.Economy"
	HealthServiceName  = "rawr.Health"
)

// Scopes checked by auth.RequireScopes through the method policies.
const (
	ScopeRead  = "economy:read"
	ScopeWrite = "economy:write"
)

// Method groups returned by Policies.
const (
	GroupEconomyRead  = "economy-read"
	GroupEconomyWrite = "economy-write"
	GroupHealth       = "health"
)

// Policies groups the served methods: Balance reads, every other Economy
// method writes, and health checks need no scope. A non-nil writeLimit gives
// the write group its own per-caller rate limit.
func Policies(writeLimit *policy.RateLimitRule) *policy.Resolver {
	return policy.NewResolver(
		policy.Group(GroupEconomyRead).
			Exact("/"+EconomyServiceName+"/Balance").
			Policy(policy.Policy{Scope: ScopeRead}),
		policy.Group(GroupEconomyWrite).
			Prefix("/"+EconomyServiceName+"/").
			Policy(policy.Policy{Scope: ScopeWrite, RateLimit: writeLimit}),
		policy.Group(GroupHealth).
			Prefix("/"+HealthServiceName+"/"),
	)
}

var defaultPolicies = Policies(nil)

// RequiredScope maps a full method name to the caller scope it needs under
// the default Policies. Health checks and unknown methods need none.
func RequiredScope(fullMethod string) string {
	return defaultPolicies.Scope(fullMethod)
}

// method builds a unary grpc.MethodDesc that decodes Req, runs call on the
// registered implementation S and passes through the server interceptor.
func method[S, Req, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, r any) (any, error) {
				return call(srv.(S), ctx, r.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// EconomyServer is the rawr.Economy service.
type EconomyServer interface {
	Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error)
	Transaction(ctx context.Context, req *TransactionRequest) (*ReceiptResponse, error)
	Transfer(ctx context.Context, req *TransferRequest) (*ReceiptResponse, error)
	Exchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResponse, error)
	Daily(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error)
	Weekly(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error)
}

// EconomyServiceDesc is the grpc.ServiceDesc for rawr.Economy.
var EconomyServiceDesc = grpc.ServiceDesc{
	ServiceName: EconomyServiceName,
	HandlerType: (*EconomyServer)(nil),
	Methods: []grpc.MethodDesc{
		method(EconomyServiceName, "Balance", EconomyServer.Balance),
		method(EconomyServiceName, "Transaction", EconomyServer.Transaction),
		method(EconomyServiceName, "Transfer", EconomyServer.Transfer),
		method(EconomyServiceName, "Exchange", EconomyServer.Exchange),
		method(EconomyServiceName, "Daily", EconomyServer.Daily),
		method(EconomyServiceName, "Weekly", EconomyServer.Weekly),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rawr/economy.proto",
}

// HealthServer is the rawr.Health service.
type HealthServer interface {
	Check(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
}

// HealthFunc adapts a function to HealthServer.
type HealthFunc func(ctx context.Context) (*HealthResponse, error)

// Check calls f.
func (f HealthFunc) Check(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	return f(ctx)
}

// HealthServiceDesc is the grpc.ServiceDesc for rawr.Health.
var HealthServiceDesc = grpc.ServiceDesc{
	ServiceName: HealthServiceName,
	HandlerType: (*HealthServer)(nil),
	Methods: []grpc.MethodDesc{
		method(HealthServiceName, "Check", HealthServer.Check),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rawr/health.proto",
}

// RegisterEconomy registers an Economy implementation on s.
func RegisterEconomy(s grpc.ServiceRegistrar, srv EconomyServer) {
	s.RegisterService(&EconomyServiceDesc, srv)
}

// RegisterHealth registers a Health implementation on s.
func RegisterHealth(s grpc.ServiceRegistrar, srv HealthServer) {
	s.RegisterService(&HealthServiceDesc, srv)
}
