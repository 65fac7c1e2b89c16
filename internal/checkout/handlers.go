package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/common"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/order"
	"github.com/openharvest/backend-hub/internal/pricing"
	"github.com/openharvest/backend-hub/internal/stock"
)

type Handler struct {
	Svc *Service
}

type completeRequest struct {
	// SeenPrices maps line item id to the unit price the client last
	// rendered. Entries are optional; any provided entry must match.
	SeenPrices map[string]money.Money `json:"seenPrices"`
}

// Complete handles POST /orders/{orderID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	seen := make(map[uuid.UUID]money.Money, len(payload.SeenPrices))
	for raw, price := range payload.SeenPrices {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line item id in seenPrices", nil)
			return
		}
		seen[id] = price
	}

	result, err := h.Svc.Complete(r.Context(), orderID, seen)
	if err != nil {
		h.writeError(w, err)
		return
	}
	depleted := make([]map[string]string, 0, len(result.Depleted))
	for _, pair := range result.Depleted {
		depleted = append(depleted, map[string]string{
			"hubId":     pair.HubID.String(),
			"variantId": pair.VariantID.String(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId":  result.OrderID.String(),
		"state":    string(order.Complete),
		"total":    result.Total,
		"depleted": depleted,
	}})
}

// Cancel handles POST /orders/{orderID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	if err := h.Svc.Cancel(r.Context(), orderID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId": orderID.String(),
		"state":   string(order.Cancelled),
	}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
	case errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrBusy):
		common.JSONError(w, http.StatusConflict, "IN_PROGRESS", "another request for this order is in flight", nil)
	case errors.Is(err, order.ErrNotBuilding):
		common.JSONError(w, http.StatusConflict, "NOT_BUILDING", "order is no longer in building state", nil)
	case errors.Is(err, order.ErrAlreadyCancelled):
		common.JSONError(w, http.StatusConflict, "ALREADY_CANCELLED", "order is already cancelled", nil)
	case errors.Is(err, order.ErrEmptyOrder):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_ORDER", "order has no line items", nil)
	case errors.Is(err, pricing.ErrNotAvailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_AVAILABLE", "a line item is no longer available", nil)
	default:
		var mismatch *order.PriceMismatchError
		if errors.As(err, &mismatch) {
			common.JSONError(w, http.StatusConflict, "PRICE_CHANGED", "prices changed since last display", map[string]any{
				"lineItemId": mismatch.LineItemID.String(),
				"seen":       mismatch.Seen,
				"actual":     mismatch.Actual,
			})
			return
		}
		if shortfall, ok := stock.AsInsufficientStock(err); ok {
			common.JSONError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK", "not enough stock", map[string]any{
				"variantId": shortfall.VariantID.String(),
				"available": shortfall.Available,
			})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
