// Package core orders and chains the server's interceptors. Options register
// named entries with a priority; the server turns them into one unary and one
// stream interceptor.
package core

import (
	"cmp"
	"slices"

	"google.golang.org/grpc"
)

// middleware is one named interceptor pair. Lower Order values run first.
type middleware struct {
	Name   string
	Unary  grpc.UnaryServerInterceptor
	Stream grpc.StreamServerInterceptor
	Order  int
}

// MiddlewareBuilder collects middleware entries. The zero value is ready to
// use.
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers an entry. Either interceptor may be nil if only one
// direction is needed. Entries with the same order keep registration order.
func (b *MiddlewareBuilder) Add(name string, order int, unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) {
	b.entries = append(b.entries, middleware{
		Name:   name,
		Unary:  unary,
		Stream: stream,
		Order:  order,
	})
}

func (b *MiddlewareBuilder) sorted() []middleware {
	out := slices.Clone(b.entries)
	slices.SortStableFunc(out, func(a, c middleware) int {
		return cmp.Compare(a.Order, c.Order)
	})
	return out
}

// Build returns the unary and stream interceptors in execution order.
func (b *MiddlewareBuilder) Build() ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor
	for _, m := range b.sorted() {
		if m.Unary != nil {
			unary = append(unary, m.Unary)
		}
		if m.Stream != nil {
			stream = append(stream, m.Stream)
		}
	}
	return unary, stream
}

// Names lists the registered entries in execution order.
func (b *MiddlewareBuilder) Names() []string {
	sorted := b.sorted()
	names := make([]string, len(sorted))
	for i, m := range sorted {
		names[i] = m.Name
	}
	return names
}

// ServerOptions chains the sorted interceptors into grpc.ServerOption values
// for grpc.NewServer. It returns nil when nothing was registered.
func (b *MiddlewareBuilder) ServerOptions() []grpc.ServerOption {
	unary, stream := b.Build()
	var opts []grpc.ServerOption
	if u := ChainUnary(unary); u != nil {
		opts = append(opts, grpc.UnaryInterceptor(u))
	}
	if s := ChainStream(stream); s != nil {
		opts = append(opts, grpc.StreamInterceptor(s))
	}
	return opts
}
