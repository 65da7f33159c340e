package httpapi

import "context"

type contextKey int

//RequestIDKey is the context key for the ID of a request
const RequestIDKey contextKey = 0

//RequestIDHeader carries the request ID in responses
const RequestIDHeader = "X-Request-ID"

//requestID returns the ID of the request with context ctx, or an empty string
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
