package rates

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-cargo/internal/common"
	"github.com/noah-isme/backend-cargo/internal/repo/errs"
)

// Handler exposes rate grid administration and price lookups.
type Handler struct {
	engine   *Engine
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Engine   *Engine
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{engine: cfg.Engine, validate: v}
}

// RateInput is the payload for writing one rate cell. A null price marks
// the cell explicitly unavailable for that zone, service and bracket.
type RateInput struct {
	ZoneID    string   `json:"zoneId" validate:"required,uuid4"`
	ServiceID string   `json:"serviceId" validate:"required,uuid4"`
	BracketID string   `json:"bracketId" validate:"required,uuid4"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
}

// GetGrid handles GET /api/v1/rates/grid.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rates engine not configured", nil)
		return
	}
	grid, err := h.engine.Grid(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": fromGrid(grid)})
}

// UpsertRate handles PUT /api/v1/rates.
func (h *Handler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rates engine not configured", nil)
		return
	}
	var in RateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.engine.SetRate(r.Context(), in.ZoneID, in.ServiceID, in.BracketID, in.Price); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": in})
}

// QuotePrice handles GET /api/v1/rates/quote. The destination is given
// either as zone=<code> or country=<iso2>.
func (h *Handler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rates engine not configured", nil)
		return
	}
	qs := r.URL.Query()
	serviceName := qs.Get("service")
	if serviceName == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "service is required", nil)
		return
	}
	weight, err := strconv.ParseFloat(qs.Get("weightKg"), 64)
	if err != nil || weight <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "weightKg must be a positive number", nil)
		return
	}

	var quote Quote
	switch {
	case qs.Get("zone") != "":
		quote, err = h.engine.QuoteByZone(r.Context(), qs.Get("zone"), serviceName, weight)
	case qs.Get("country") != "":
		quote, err = h.engine.QuoteByCountry(r.Context(), qs.Get("country"), serviceName, weight)
	default:
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "zone or country is required", nil)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrZoneNotFound):
		common.JSONError(w, http.StatusNotFound, "ZONE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrServiceNotFound):
		common.JSONError(w, http.StatusNotFound, "SERVICE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrNoBrackets):
		common.JSONError(w, http.StatusConflict, "GRID_EMPTY", err.Error(), nil)
	case errors.Is(err, ErrRateNotConfigured):
		common.JSONError(w, http.StatusNotFound, "RATE_NOT_CONFIGURED", err.Error(), nil)
	case errors.Is(err, ErrRateUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "RATE_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, ErrOverweightUnsupported):
		common.JSONError(w, http.StatusUnprocessableEntity, "OVERWEIGHT_UNSUPPORTED", err.Error(), nil)
	case errors.Is(err, errs.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rate dimension not found", nil)
	case errors.Is(err, errs.ErrTenantMissing), errors.Is(err, errs.ErrTenantInvalid):
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
