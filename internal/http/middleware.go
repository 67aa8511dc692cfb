package httpapi

import (
	"context"
	"net/http"

	"github.com/Markide1/shopie-app/internal/identity"
)

// The auth layer in front of this service verifies tokens and forwards the
// resolved identity in these headers. The core trusts them.
const (
	headerUserID = "X-User-Id"
	headerRole   = "X-User-Role"
)

type ctxKey int

const userKey ctxKey = 0

func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := identity.User{
			ID:   r.Header.Get(headerUserID),
			Role: identity.Role(r.Header.Get(headerRole)),
		}
		if user.ID == "" || !user.Role.Valid() {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r).Role != identity.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) identity.User {
	user, _ := r.Context().Value(userKey).(identity.User)
	return user
}
