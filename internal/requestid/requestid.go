// Package requestid propagates a request id from context onto outgoing requests.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the header carrying the id to the backend.
const Header = "X-Request-ID"

type ctxKey struct{}

// WithRequestID returns a context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Apply sets the request id header on req unless the caller already did.
// Retries of one logical call reuse the same id when it lives in ctx.
func Apply(req *http.Request) string {
	if id := req.Header.Get(Header); id != "" {
		return id
	}
	id := FromContext(req.Context())
	req.Header.Set(Header, id)
	return id
}
