package overrides

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Handler wires HTTP endpoints for override administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers override routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users/{userID}", h.listUser)
	r.Put("/users/{userID}/{slug}", h.upsertUser)
	r.Delete("/users/{userID}/{slug}", h.deleteUser)
	r.Get("/orgs/{orgID}", h.listOrg)
	r.Put("/orgs/{orgID}/{slug}", h.upsertOrg)
	r.Delete("/orgs/{orgID}/{slug}", h.deleteOrg)
}

type overridePayload struct {
	OrgID     int64      `json:"org_id" validate:"omitempty,gt=0"`
	Type      string     `json:"override_type" validate:"required"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) listUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	rows, err := h.service.ListUserOverrides(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user overrides", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": rows})
}

func (h *Handler) listOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(w, r, "orgID")
	if !ok {
		return
	}
	rows, err := h.service.ListOrgOverrides(r.Context(), orgID)
	if err != nil {
		h.logger.Error("list org overrides", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": rows})
}

func (h *Handler) upsertUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	if payload.OrgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org_id is required for user overrides")
		return
	}
	o, err := h.service.UpsertUserOverride(r.Context(), shared.ActorID(r), userID, payload.OrgID,
		chi.URLParam(r, "slug"), entitlement.OverrideType(payload.Type), payload.Value, payload.ExpiresAt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil || orgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org query parameter must be a positive integer")
		return
	}
	if err := h.service.DeleteUserOverride(r.Context(), shared.ActorID(r), userID, orgID, chi.URLParam(r, "slug")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(w, r, "orgID")
	if !ok {
		return
	}
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	o, err := h.service.UpsertOrgOverride(r.Context(), shared.ActorID(r), orgID,
		chi.URLParam(r, "slug"), entitlement.OverrideType(payload.Type), payload.Value, payload.ExpiresAt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(w, r, "orgID")
	if !ok {
		return
	}
	if err := h.service.DeleteOrgOverride(r.Context(), shared.ActorID(r), orgID, chi.URLParam(r, "slug")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (overridePayload, bool) {
	var payload overridePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return payload, false
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "override_type is required")
		return payload, false
	}
	return payload, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
