package grouping

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-cargo/internal/common"
	"github.com/noah-isme/backend-cargo/internal/repo"
)

// Handler exposes grouping suggestions and the shipment group lifecycle.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

// CreateGroupInput is the payload for creating a shipment group.
type CreateGroupInput struct {
	QuoteIDs []string `json:"quoteIds" validate:"required,min=2,dive,uuid4"`
}

// StatusInput is the payload for advancing a group's status.
type StatusInput struct {
	Status string `json:"status" validate:"required,oneof=validated paid shipped"`
}

// Suggestion handles GET /api/v1/quotes/{id}/suggestion.
func (h *Handler) Suggestion(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grouping service not configured", nil)
		return
	}
	suggestion, err := h.service.Suggest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": suggestion})
}

// Create handles POST /api/v1/groups.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grouping service not configured", nil)
		return
	}
	var in CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	group, err := h.service.CreateGroup(r.Context(), in.QuoteIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": group})
}

// Detail handles GET /api/v1/groups/{id}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grouping service not configured", nil)
		return
	}
	group, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": group})
}

// Dissolve handles DELETE /api/v1/groups/{id}.
func (h *Handler) Dissolve(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grouping service not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.DissolveGroup(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id, "status": "dissolved"}})
}

// UpdateStatus handles PUT /api/v1/groups/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grouping service not configured", nil)
		return
	}
	var in StatusInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	group, err := h.service.AdvanceStatus(r.Context(), chi.URLParam(r, "id"), Status(in.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": group})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrGroupTooSmall), errors.Is(err, ErrAddressMismatch), errors.Is(err, ErrQuoteNotGroupable):
		common.JSONError(w, http.StatusUnprocessableEntity, "GROUP_INVALID", err.Error(), nil)
	case errors.Is(err, ErrAlreadyGrouped):
		common.JSONError(w, http.StatusConflict, "ALREADY_GROUPED", err.Error(), nil)
	case errors.Is(err, ErrGroupNotDissolvable):
		common.JSONError(w, http.StatusConflict, "GROUP_IMMUTABLE", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrQuoteMissing), errors.Is(err, repo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, repo.ErrTenantMissing), errors.Is(err, repo.ErrTenantInvalid):
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
