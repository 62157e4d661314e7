package middleware

import (
	"context"
	"net/http"

	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (model.Principal, error)
}

// Authenticate resolves the bearer token to a principal and stores it in the
// request context. Requests without a valid token never reach next.
func Authenticate(authenticator Authenticator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))

			principal, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				log.Warn("Authentication failed",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="slotswap"`)
				_ = apperrors.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}
