package achievements

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/skillforge/internal/gate"
	"github.com/skillforge/skillforge/internal/platform/httpx"
	"github.com/skillforge/skillforge/internal/shared"
)

// Handler exposes badge endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    gate.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gm gate.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gm}
}

// MountRoutes registers badge routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(gate.RequireAuthenticated(), gate.RequireActive()))
		r.Get("/badges", h.catalog)
		r.Get("/badges/mine", h.mine)
	})
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	badges, err := h.service.ListBadges(r.Context())
	if err != nil {
		h.logger.Error("list badges", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	awards, err := h.service.ListUserBadges(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("list user badges", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"badges": awards})
}
