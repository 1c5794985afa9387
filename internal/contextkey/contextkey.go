// Package contextkey defines the typed keys used to carry per-request
// values (request id, authenticated user id) through context.Context.
package contextkey

type Key int

const (
	ContextKeyRequestID Key = iota
	ContextKeyUserID
	ContextKeyClaims
)
