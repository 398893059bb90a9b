package middleware

import (
	"context"
	"errors"
	"net/http"

	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// Authorize checks that the caller in ctx holds permission. It returns
// ErrUnauthenticated, ErrForbidden or the store's error.
func Authorize(ctx context.Context, store PermissionStore, permission string) error {
	user, ok := GetUser(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	allowed, err := store.HasPermission(ctx, user.Role, permission)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// FailAuthorization writes the response for an Authorize error.
func FailAuthorization(w http.ResponseWriter, r *http.Request, err error) {
	reqID := GetRequestID(r.Context())
	switch {
	case errors.Is(err, ErrUnauthenticated):
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
	case errors.Is(err, ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
	default:
		logger.From(r.Context()).Error().Err(err).Msg("permission check failed")
		api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
	}
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Authorize(r.Context(), store, permission); err != nil {
				FailAuthorization(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
