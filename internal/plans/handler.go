package plans

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Handler wires HTTP endpoints for plan administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers plan routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{planID}", h.get)
	r.Get("/{planID}/features", h.listFeatures)
	r.Put("/{planID}/features/{slug}", h.setFeature)
	r.Delete("/{planID}/features/{slug}", h.removeFeature)
	r.Get("/{planID}/limits", h.listLimits)
	r.Put("/{planID}/limits/{slug}", h.setLimit)
	r.Delete("/{planID}/limits/{slug}", h.removeLimit)
	r.Post("/{planID}/assignments", h.assign)
	r.Delete("/{planID}/assignments", h.unassign)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		h.logger.Error("list plans", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"plans": plans})
}

type planPayload struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload planPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), shared.ActorID(r), payload.Name, payload.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	plan, err := h.service.GetPlan(r.Context(), planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	features, err := h.service.PlanFeatures(r.Context(), planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"features": features})
}

func (h *Handler) listLimits(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	limits, err := h.service.PlanLimits(r.Context(), planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"limits": limits})
}

type setFeaturePayload struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) setFeature(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	var payload setFeaturePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.service.SetPlanFeature(r.Context(), shared.ActorID(r), planID, chi.URLParam(r, "slug"), payload.Enabled); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFeature(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemovePlanFeature(r.Context(), shared.ActorID(r), planID, chi.URLParam(r, "slug")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setLimitPayload struct {
	MaxLimit int64 `json:"max_limit" validate:"min=0"`
}

func (h *Handler) setLimit(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	var payload setLimitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "max_limit must be >= 0")
		return
	}
	if err := h.service.SetPlanLimit(r.Context(), shared.ActorID(r), planID, chi.URLParam(r, "slug"), payload.MaxLimit); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeLimit(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemovePlanLimit(r.Context(), shared.ActorID(r), planID, chi.URLParam(r, "slug")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	OrgID  int64 `json:"org_id" validate:"required,gt=0"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.planID(w, r)
	if !ok {
		return
	}
	var payload assignmentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id and org_id must be positive")
		return
	}
	if err := h.service.AssignPlan(r.Context(), shared.ActorID(r), payload.UserID, payload.OrgID, planID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.planID(w, r); !ok {
		return
	}
	var payload assignmentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id and org_id must be positive")
		return
	}
	if err := h.service.UnassignPlan(r.Context(), shared.ActorID(r), payload.UserID, payload.OrgID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) planID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "planID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "planID must be a positive integer")
		return 0, false
	}
	return id, true
}
