package rawrguild

// DefaultOptions returns the recommended set of options for production use:
// panic recovery with request IDs and a private metrics registry.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithMetrics(nil),
	}
}
