package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/common"
	"github.com/openharvest/backend-hub/internal/money"
)

// OverrideWriter persists hub-scoped overrides. *PGStore satisfies it.
type OverrideWriter interface {
	Override(ctx context.Context, hubID, variantID uuid.UUID) (*VariantOverride, error)
	UpsertOverride(ctx context.Context, o VariantOverride) error
}

// CacheInvalidator drops cached listings after an override change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, hubID uuid.UUID) error
}

// AdminHandler exposes the hub manager's override surface.
type AdminHandler struct {
	Store    OverrideWriter
	Cache    CacheInvalidator
	Validate *validator.Validate
	Currency money.Currency
}

type overrideRequest struct {
	HubID            string  `json:"hubId" validate:"required,uuid4"`
	VariantID        string  `json:"variantId" validate:"required,uuid4"`
	Price            *string `json:"price"`
	CountOnHand      *int64  `json:"countOnHand" validate:"omitempty,gte=0"`
	UseProducerStock bool    `json:"useProducerStock"`
	Resettable       bool    `json:"resettable"`
	DefaultStock     *int64  `json:"defaultStock" validate:"omitempty,gte=0"`
}

// Upsert handles PUT /admin/overrides. Price arrives as a decimal string
// ("12.50") and is stored in minor units.
func (h *AdminHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "override store not configured", nil)
		return
	}
	var payload overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
	}
	hubID, _ := uuid.Parse(payload.HubID)
	variantID, _ := uuid.Parse(payload.VariantID)

	override := VariantOverride{
		HubID:            hubID,
		VariantID:        variantID,
		CountOnHand:      payload.CountOnHand,
		UseProducerStock: payload.UseProducerStock,
		Resettable:       payload.Resettable,
		DefaultStock:     payload.DefaultStock,
	}
	if payload.Price != nil {
		parsed, err := h.Currency.Parse(*payload.Price)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid price", nil)
			return
		}
		override.Price = &parsed
	}
	if payload.Resettable && payload.DefaultStock == nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "resettable overrides need defaultStock", nil)
		return
	}

	if err := h.Store.UpsertOverride(r.Context(), override); err != nil {
		if errors.Is(err, ErrVariantNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown hub or variant", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to save override", nil)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(r.Context(), hubID); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "override saved but cache invalidation failed", nil)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOverride(override)})
}

// GetOverride handles GET /admin/overrides?hubId=&variantId=.
func (h *AdminHandler) GetOverride(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "override store not configured", nil)
		return
	}
	q := r.URL.Query()
	hubID, err := uuid.Parse(q.Get("hubId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid hubId", nil)
		return
	}
	variantID, err := uuid.Parse(q.Get("variantId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variantId", nil)
		return
	}
	override, err := h.Store.Override(r.Context(), hubID, variantID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load override", nil)
		return
	}
	if override == nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no override for this pair", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOverride(*override)})
}

func renderOverride(o VariantOverride) map[string]any {
	out := map[string]any{
		"hubId":            o.HubID.String(),
		"variantId":        o.VariantID.String(),
		"useProducerStock": o.UseProducerStock,
		"resettable":       o.Resettable,
	}
	if o.Price != nil {
		out["price"] = *o.Price
	}
	if o.CountOnHand != nil {
		out["countOnHand"] = *o.CountOnHand
	}
	if o.DefaultStock != nil {
		out["defaultStock"] = *o.DefaultStock
	}
	return out
}
