// Package middleware provides HTTP middleware for the console service.
package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/cloudpane/bucketcache/internal/errors"
	"github.com/cloudpane/bucketcache/internal/observability"
)

// ErrorResponse is the envelope emitted by middleware failures.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts handler panics into a 500 with the standard error
// envelope instead of tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.CLILogger.Error("Handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))

				details := map[string]any{}
				if id := RequestIDFromContext(r.Context()); id != "" {
					details["request_id"] = id
				}
				apperrors.WriteError(w, http.StatusInternalServerError,
					apperrors.CodeInternal,
					fmt.Sprintf("panic: %v", rec),
					details)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
