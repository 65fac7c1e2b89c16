package pricing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/common"
	"github.com/openharvest/backend-hub/internal/obs"
)

type Handler struct {
	Resolver *Resolver
}

// Price handles GET /price?hubId=&orderCycleId=&variantId=&quantity=.
// The response is the per-unit breakdown the storefront renders; the
// same resolution runs again at commit time and must agree.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price resolver not configured", nil)
		return
	}
	q := r.URL.Query()
	hubID, err := uuid.Parse(q.Get("hubId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid hubId", nil)
		return
	}
	cycleID, err := uuid.Parse(q.Get("orderCycleId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderCycleId", nil)
		return
	}
	variantID, err := uuid.Parse(q.Get("variantId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variantId", nil)
		return
	}
	qty := int64(1)
	if raw := q.Get("quantity"); raw != "" {
		qty, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || qty <= 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity must be a positive integer", nil)
			return
		}
	}

	bd, err := h.Resolver.PriceFor(r.Context(), hubID, cycleID, variantID, qty)
	h.observe(err)
	if errors.Is(err, ErrNotAvailable) {
		common.JSONError(w, http.StatusNotFound, "NOT_AVAILABLE", "variant not available from this distribution", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price resolution failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderBreakdown(bd, qty)})
}

func (h *Handler) observe(err error) {
	if obs.PriceResolutionTotal == nil {
		return
	}
	switch {
	case err == nil:
		obs.PriceResolutionTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNotAvailable):
		obs.PriceResolutionTotal.WithLabelValues("not_available").Inc()
	default:
		obs.PriceResolutionTotal.WithLabelValues("error").Inc()
	}
}

func renderBreakdown(bd Breakdown, qty int64) map[string]any {
	feeBuckets := make(map[string]int64, len(bd.Fees))
	for feeType, amount := range bd.Fees {
		feeBuckets[string(feeType)] = amount
	}
	applied := make([]map[string]any, 0, len(bd.AppliedFees))
	for _, a := range bd.AppliedFees {
		applied = append(applied, map[string]any{
			"feeId":      a.Fee.ID.String(),
			"name":       a.Fee.Name,
			"type":       string(a.Fee.Type),
			"unitAmount": a.UnitAmount,
		})
	}
	taxParts := make([]map[string]any, 0, len(bd.TaxParts))
	for _, part := range bd.TaxParts {
		taxParts = append(taxParts, map[string]any{
			"rateId": part.Rate.ID.String(),
			"name":   part.Rate.Name,
			"rate":   part.Rate.Rate.String(),
			"amount": part.Amount,
		})
	}
	return map[string]any{
		"variantId": bd.VariantID.String(),
		"quantity":  qty,
		"unit": map[string]any{
			"base":  bd.Base,
			"fees":  feeBuckets,
			"tax":   bd.Tax,
			"final": bd.Final,
		},
		"appliedFees": applied,
		"taxParts":    taxParts,
		"lineTotal":   bd.Final * qty,
	}
}
