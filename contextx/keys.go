// Package contextx carries request-scoped values: the request ID and the
// authenticated caller.
package contextx

type ctxKey uint8

const (
	callerKey ctxKey = iota + 1
	requestIDKey
)
