package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/shared"
	"github.com/skillforge/skillforge/internal/users"
)

// UserLoader fetches account data for identity resolution.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// EntitlementLoader resolves the effective permission set.
type EntitlementLoader interface {
	EffectivePermissions(ctx context.Context, userID int64) (perms []string, roles []string, err error)
}

// IdentityMiddleware resolves the session's user into an Actor carrying role
// and permission snapshots. Resolution failures leave the request anonymous,
// so downstream gates deny rather than allow.
type IdentityMiddleware struct {
	Users        UserLoader
	Entitlements EntitlementLoader
	Logger       *slog.Logger
}

// Attach loads the actor for the current session, when any.
func (m IdentityMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			m.Logger.Warn("malformed session user id", slog.String("value", sess.User()))
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Users.GetUser(r.Context(), userID)
		if err != nil {
			m.Logger.Warn("load session user", slog.Int64("user_id", userID), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		perms, roles, err := m.Entitlements.EffectivePermissions(r.Context(), userID)
		if err != nil {
			m.Logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		actor := &shared.Actor{
			UserID:      user.ID,
			Email:       user.Email,
			Username:    user.Username,
			Active:      user.IsActive,
			Roles:       roles,
			Permissions: perms,
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

var _ EntitlementLoader = (*entitlements.Service)(nil)
