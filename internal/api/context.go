package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
	"github.com/hyperengineering/pocportal/internal/validation"
)

// asOfContextKey is the context key for the evaluation instant.
type asOfContextKey struct{}

// WithAsOf returns a new context carrying the evaluation instant.
func WithAsOf(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, asOfContextKey{}, t)
}

// AsOfFromContext returns the evaluation instant, or fallback when the
// request did not pin one.
func AsOfFromContext(ctx context.Context, fallback time.Time) time.Time {
	t, ok := ctx.Value(asOfContextKey{}).(time.Time)
	if !ok || t.IsZero() {
		return fallback
	}
	return t
}

// AsOfMiddleware reads the optional as_of query parameter (date or RFC 3339
// timestamp) into the request context. Unparseable values are rejected
// with 422.
func AsOfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("as_of")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		t, ok := types.ParseDate(raw)
		if !ok {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
				{Field: "as_of", Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"},
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAsOf(r.Context(), t)))
	})
}
