package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/common"
	"github.com/openharvest/backend-hub/internal/pricing"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createRequest struct {
	HubID        string `json:"hubId" validate:"required,uuid4"`
	OrderCycleID string `json:"orderCycleId" validate:"required,uuid4"`
}

type addItemRequest struct {
	VariantID string `json:"variantId" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type updateItemRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=0"`
}

type shippingRequest struct {
	ShippingMethodID *string `json:"shippingMethodId" validate:"omitempty,uuid4"`
}

type distributionRequest struct {
	HubID        string `json:"hubId" validate:"required,uuid4"`
	OrderCycleID string `json:"orderCycleId" validate:"required,uuid4"`
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if !h.decode(w, r, &payload) {
		return
	}
	hubID, _ := uuid.Parse(payload.HubID)
	cycleID, _ := uuid.Parse(payload.OrderCycleID)
	o, err := h.Svc.Create(r.Context(), hubID, cycleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": renderOrder(o)})
}

// Get handles GET /orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

// AddItem handles POST /orders/{orderID}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	variantID, _ := uuid.Parse(payload.VariantID)
	o, err := h.Svc.AddItem(r.Context(), orderID, variantID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

// UpdateItem handles PATCH /orders/{orderID}/items/{itemID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line item id", nil)
		return
	}
	var payload updateItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	o, err := h.Svc.UpdateItem(r.Context(), orderID, itemID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

// RemoveItem handles DELETE /orders/{orderID}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line item id", nil)
		return
	}
	o, err := h.Svc.RemoveItem(r.Context(), orderID, itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

// SetShipping handles PUT /orders/{orderID}/shipping.
func (h *Handler) SetShipping(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var payload shippingRequest
	if !h.decode(w, r, &payload) {
		return
	}
	var methodID *uuid.UUID
	if payload.ShippingMethodID != nil {
		id, err := uuid.Parse(*payload.ShippingMethodID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipping method id", nil)
			return
		}
		methodID = &id
	}
	o, err := h.Svc.SetShippingMethod(r.Context(), orderID, methodID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

// SetDistribution handles PUT /orders/{orderID}/distribution.
func (h *Handler) SetDistribution(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var payload distributionRequest
	if !h.decode(w, r, &payload) {
		return
	}
	hubID, _ := uuid.Parse(payload.HubID)
	cycleID, _ := uuid.Parse(payload.OrderCycleID)
	o, err := h.Svc.SetDistribution(r.Context(), orderID, hubID, cycleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderOrder(o)})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrLineItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "line item not found", nil)
	case errors.Is(err, ErrNotBuilding):
		common.JSONError(w, http.StatusConflict, "NOT_BUILDING", "order is no longer in building state", nil)
	case errors.Is(err, ErrWrongHub):
		common.JSONError(w, http.StatusUnprocessableEntity, "WRONG_HUB", "shipping method belongs to another hub", nil)
	case errors.Is(err, pricing.ErrNotAvailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_AVAILABLE", "variant not available from this distribution", nil)
	default:
		var incompatible *IncompatibleSelectionError
		if errors.As(err, &incompatible) {
			ids := make([]string, 0, len(incompatible.VariantIDs))
			for _, id := range incompatible.VariantIDs {
				ids = append(ids, id.String())
			}
			common.JSONError(w, http.StatusUnprocessableEntity, "INCOMPATIBLE_SELECTION",
				"some line items are not offered by the new distribution", map[string]any{"variantIds": ids})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}

func renderOrder(o Order) map[string]any {
	items := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, map[string]any{
			"id":        li.ID.String(),
			"variantId": li.VariantID.String(),
			"quantity":  li.Quantity,
			"price":     li.Price,
		})
	}
	adjustments := make([]map[string]any, 0, len(o.Adjustments))
	for _, adj := range o.Adjustments {
		adjustments = append(adjustments, map[string]any{
			"id":         adj.ID.String(),
			"sourceKind": string(adj.SourceKind),
			"sourceId":   adj.SourceID.String(),
			"label":      adj.Label,
			"amount":     adj.Amount,
			"state":      string(adj.State),
		})
	}
	out := map[string]any{
		"id":           o.ID.String(),
		"hubId":        o.HubID.String(),
		"orderCycleId": o.OrderCycleID.String(),
		"state":        string(o.State),
		"total":        o.Total,
		"lineItems":    items,
		"adjustments":  adjustments,
	}
	if o.ShippingMethodID != nil {
		out["shippingMethodId"] = o.ShippingMethodID.String()
	}
	return out
}
