// Package rawrguild is the resilience layer behind a Discord bot: a TTL+LRU
// response cache, one circuit breaker per external dependency, a request
// coalescer that collapses concurrent cache misses, and an atomic two-currency
// guild economy, served over gRPC.
package rawrguild
