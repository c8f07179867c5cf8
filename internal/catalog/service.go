// Package catalog manages the tenant carton catalog consumed by the
// packing engine.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/common"
	"github.com/noah-isme/backend-cargo/internal/packing"
)

type queryProvider interface {
	ListCartons(ctx context.Context, activeOnly bool) ([]packing.Carton, error)
	CreateCarton(ctx context.Context, c packing.Carton) (packing.Carton, error)
	SetDefaultCarton(ctx context.Context, cartonID string) error
	DeactivateCarton(ctx context.Context, cartonID string) error
}

// Service orchestrates carton catalog reads/writes and caching.
type Service struct {
	Q     queryProvider
	Cache *cache.JSON
}

// CartonInput captures the payload for creating a carton.
type CartonInput struct {
	Ref         string  `json:"ref" validate:"required"`
	InnerLength float64 `json:"innerLength" validate:"gt=0"`
	InnerWidth  float64 `json:"innerWidth" validate:"gt=0"`
	InnerHeight float64 `json:"innerHeight" validate:"gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	MaxWeightKg float64 `json:"maxWeightKg" validate:"gte=0"`
	IsDefault   bool    `json:"isDefault"`
}

// ActiveCartons returns the active catalog, via cache when possible.
func (s *Service) ActiveCartons(ctx context.Context) ([]packing.Carton, error) {
	key := cache.KeyCartonCatalog(ctx)
	var cached []packing.Carton
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	cartons, err := s.Q.ListCartons(ctx, true)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, key, cartons)
	return cartons, nil
}

// List returns the full catalog including deactivated cartons.
func (s *Service) List(ctx context.Context) ([]packing.Carton, error) {
	return s.Q.ListCartons(ctx, false)
}

// Create inserts a carton. When the new carton is flagged default it
// takes the flag over from the previous default so at most one active
// default exists.
func (s *Service) Create(ctx context.Context, in CartonInput) (packing.Carton, error) {
	if strings.TrimSpace(in.Ref) == "" {
		return packing.Carton{}, common.NewAppError("VALIDATION_ERROR", "ref is required", http.StatusBadRequest, nil)
	}
	created, err := s.Q.CreateCarton(ctx, packing.Carton{
		Ref:         strings.TrimSpace(in.Ref),
		InnerLength: in.InnerLength,
		InnerWidth:  in.InnerWidth,
		InnerHeight: in.InnerHeight,
		Price:       in.Price,
		MaxWeightKg: in.MaxWeightKg,
		IsDefault:   in.IsDefault,
	})
	if err != nil {
		return packing.Carton{}, err
	}
	if in.IsDefault {
		if err := s.Q.SetDefaultCarton(ctx, created.ID); err != nil {
			return packing.Carton{}, err
		}
	}
	s.invalidate(ctx)
	return created, nil
}

// SetDefault marks the carton as the tenant default.
func (s *Service) SetDefault(ctx context.Context, cartonID string) error {
	if err := s.Q.SetDefaultCarton(ctx, cartonID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Deactivate soft-deletes a carton.
func (s *Service) Deactivate(ctx context.Context, cartonID string) error {
	if err := s.Q.DeactivateCarton(ctx, cartonID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.Cache.Delete(ctx, cache.KeyCartonCatalog(ctx))
}

// ErrNotConfigured is reused by handlers when the service is missing.
var ErrNotConfigured = errors.New("catalog service not configured")
