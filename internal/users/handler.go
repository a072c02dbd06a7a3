package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/gate"
	"github.com/skillforge/skillforge/internal/platform/httpx"
	"github.com/skillforge/skillforge/internal/shared"
)

// Handler manages user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    gate.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gm gate.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gm}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(gate.RequireAuthenticated(), gate.RequireActive()))
		r.Get("/profile", h.ownProfile)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(entitlements.PermAdminAccess))
		r.Get("/users", h.listUsers)
		r.Get("/users/{userID}", h.userProfile)
		r.Put("/users/{userID}/status", h.updateStatus)
	})
}

func (h *Handler) ownProfile(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	profile, err := h.service.GetProfile(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("own profile", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) userProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User", "user id must be numeric")
		return
	}
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type statusRequest struct {
	IsActive bool   `json:"is_active"`
	Reason   string `json:"reason"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User", "user id must be numeric")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.SetActive(r.Context(), userID, req.IsActive, actor.UserID, req.Reason); err != nil {
		h.logger.Error("update user status", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
