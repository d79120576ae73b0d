package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/featurekit/featurekit/internal/platform/httpx"
)

// Resolver is the engine contract the HTTP facade forwards to.
type Resolver interface {
	Resolve(ctx context.Context, userID, orgID int64, planID *int64) (*PermissionMap, error)
	Check(ctx context.Context, userID, orgID int64, featureSlug string, planID *int64) (CheckResult, error)
	CheckMany(ctx context.Context, userID, orgID int64, featureSlugs []string, planID *int64) ([]CheckResult, error)
	Invalidate(ctx context.Context, userID, orgID int64) error
	InvalidateAll(ctx context.Context, userID int64) error
}

// Handler exposes the permission query API over JSON. The engine itself has
// no protocol framing; this facade is what the rest of the platform mounts.
type Handler struct {
	logger    *slog.Logger
	service   Resolver
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service Resolver) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers entitlement routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{orgID}/{userID}", h.resolve)
	r.Get("/{orgID}/{userID}/check/{slug}", h.check)
	r.Post("/{orgID}/{userID}/check", h.checkMany)
	r.Delete("/{orgID}/{userID}", h.invalidate)
	r.Delete("/users/{userID}", h.invalidateAll)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	planID, ok := h.planParam(w, r)
	if !ok {
		return
	}
	pm, err := h.service.Resolve(r.Context(), userID, orgID, planID)
	if err != nil {
		h.respondError(w, "resolve", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{PermissionMap: pm, Cached: pm.Cached})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	planID, ok := h.planParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.Check(r.Context(), userID, orgID, chi.URLParam(r, "slug"), planID)
	if err != nil {
		h.respondError(w, "check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type checkManyRequest struct {
	FeatureSlugs []string `json:"feature_slugs" validate:"required,min=1,dive,required"`
}

func (h *Handler) checkMany(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	planID, ok := h.planParam(w, r)
	if !ok {
		return
	}
	var req checkManyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "feature_slugs must be a non-empty list of slugs")
		return
	}
	results, err := h.service.CheckMany(r.Context(), userID, orgID, req.FeatureSlugs, planID)
	if err != nil {
		h.respondError(w, "check many", err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkManyResponse{Results: results})
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Invalidate(r.Context(), userID, orgID); err != nil {
		h.respondError(w, "invalidate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invalidateAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.InvalidateAll(r.Context(), userID); err != nil {
		h.respondError(w, "invalidate all", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveResponse struct {
	*PermissionMap
	Cached bool `json:"cached"`
}

type checkManyResponse struct {
	Results []CheckResult `json:"results"`
}

func (h *Handler) pairParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	orgID, ok := h.idParam(w, r, "orgID")
	if !ok {
		return 0, 0, false
	}
	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return 0, 0, false
	}
	return userID, orgID, true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) planParam(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("plan")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "plan must be a positive integer")
		return nil, false
	}
	return &id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var providerErr *ProviderError
	switch {
	case errors.As(err, &validationErr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationErr.Error())
	case errors.As(err, &notFoundErr):
		httpx.Problem(w, http.StatusNotFound, "Not Found", notFoundErr.Error())
	case errors.As(err, &providerErr):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Failure", "a data provider failed")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
