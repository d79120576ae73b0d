package usage

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Handler wires HTTP endpoints for usage counters.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers usage routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{userID}", h.list)
	r.Post("/{userID}/record", h.record)
	r.Post("/{userID}/reset/{slug}", h.reset)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	counters, err := h.service.ListCounters(r.Context(), userID)
	if err != nil {
		h.logger.Error("list usage counters", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"counters": counters})
}

type recordPayload struct {
	OrgID       int64  `json:"org_id" validate:"required,gt=0"`
	FeatureSlug string `json:"feature_slug" validate:"required"`
	Delta       int64  `json:"delta" validate:"required,gt=0"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload recordPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org_id, feature_slug and a positive delta are required")
		return
	}
	counter, err := h.service.Record(r.Context(), userID, payload.OrgID, payload.FeatureSlug, payload.Delta)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counter)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Reset(r.Context(), shared.ActorID(r), userID, chi.URLParam(r, "slug")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userID must be a positive integer")
		return 0, false
	}
	return id, true
}
