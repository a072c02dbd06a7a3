package progression

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/gate"
	"github.com/skillforge/skillforge/internal/platform/httpx"
	"github.com/skillforge/skillforge/internal/shared"
)

// Handler exposes progression endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      gate.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gm gate.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gm, validator: validator.New()}
}

// MountRoutes registers progression routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(gate.RequireAuthenticated(), gate.RequireActive()))
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/leaderboard/{category}", h.leaderboard)
		r.Get("/xp", h.ownRecords)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(entitlements.PermAdminAccess))
		r.Post("/awards", h.award)
		r.Post("/quiz-passes", h.quizPass)
	})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be numeric")
			return
		}
		limit = parsed
	}
	entries, err := h.service.Leaderboard(r.Context(), category, limit)
	if err != nil {
		h.logger.Error("leaderboard", slog.String("category", category), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *Handler) ownRecords(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	records, err := h.service.ListRecords(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("list xp records", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

type awardRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Category string `json:"category" validate:"required"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

func (h *Handler) award(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id, category and a non-negative amount are required")
		return
	}
	result, err := h.service.AwardXP(r.Context(), req.UserID, req.Category, req.Amount)
	if err != nil {
		h.logger.Error("award xp", slog.Int64("user_id", req.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type quizPassRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Category string `json:"category" validate:"required"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

// quizPass is called by the grading surface once a submission clears its
// passing score: it records the pass, credits the quiz's XP reward and lets
// the pass count reach its milestone.
func (h *Handler) quizPass(w http.ResponseWriter, r *http.Request) {
	var req quizPassRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id, category and a non-negative amount are required")
		return
	}
	result, err := h.service.SubmitQuizPass(r.Context(), req.UserID, req.Category, req.Amount)
	if err != nil {
		h.logger.Error("submit quiz pass", slog.Int64("user_id", req.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
