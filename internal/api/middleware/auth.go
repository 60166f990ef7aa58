package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
)

// UserLoader resolves the acting user for capability checks
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*entities.User, error)
}

// Authorization guards routes with role-based capability checks. Authentication
// happens upstream; the gateway forwards the authenticated identity in the
// X-User-ID header and this layer only decides what that identity may do.
type Authorization struct {
	users      UserLoader
	authorizer providers.Authorizer
}

// NewAuthorization creates the capability-check middleware
func NewAuthorization(users UserLoader, authorizer providers.Authorizer) *Authorization {
	return &Authorization{
		users:      users,
		authorizer: authorizer,
	}
}

// Require wraps a handler with a capability check for the given action
func (a *Authorization) Require(action providers.Action, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		user, err := a.users.GetByID(r.Context(), userID)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).
				Str("user_id", userID).
				Msg("Failed to resolve acting user")
			writeAuthError(w, http.StatusForbidden, "unknown user")
			return
		}

		if !a.authorizer.Can(user, action) {
			writeAuthError(w, http.StatusForbidden, "action not permitted for this role")
			return
		}

		next(w, r)
	}
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
