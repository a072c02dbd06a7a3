package gate

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/skillforge/skillforge/internal/platform/httpx"
	"github.com/skillforge/skillforge/internal/shared"
)

// DenialRecorder counts rejected authorization checks.
type DenialRecorder interface {
	IncAccessDenied(reason string)
}

// Middleware adapts gate checks to chi handler chains. The actor must have
// been attached to the request context upstream; a missing or partially
// loaded actor always denies.
type Middleware struct {
	Logger  *slog.Logger
	Denials DenialRecorder
}

// Require wraps a handler with the given checks, denying on first failure.
func (m Middleware) Require(checks ...Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if err := Authorize(actor, checks...); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("request denied",
						slog.String("path", r.URL.Path),
						slog.String("reason", denialReason(err)))
				}
				if m.Denials != nil {
					m.Denials.IncAccessDenied(denialReason(err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny is shorthand for authenticated + active + any-permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.Require(RequireAuthenticated(), RequireActive(), RequireAnyPermission(perms...))
}

// RequireAll is shorthand for authenticated + active + all-permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.Require(RequireAuthenticated(), RequireActive(), RequireAllPermissions(perms...))
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, shared.ErrAccountInactive):
		return "inactive"
	default:
		return "forbidden"
	}
}
