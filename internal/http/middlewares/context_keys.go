package middlewares

const (
	// CtxRequestID is the gin context key holding the request id. Handlers
	// read it to stamp error envelopes.
	CtxRequestID = "request_id"
)
