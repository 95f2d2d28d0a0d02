package types

// ContextKey is the type for context value keys
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
)

const (
	HeaderRequestID = "X-Request-ID"
)
