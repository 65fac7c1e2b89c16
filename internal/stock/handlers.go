package stock

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/common"
)

type Handler struct {
	Ledger *Ledger
}

// Availability handles GET /availability?hubId=&variantId=. It reports
// what the authoritative counter for the pair allows, without revealing
// which backing ledger governs it.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "stock ledger not configured", nil)
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
	avail, err := h.Ledger.Availability(r.Context(), hubID, variantID)
	if errors.Is(err, catalog.ErrVariantNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "variant not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability lookup failed", nil)
		return
	}
	data := map[string]any{
		"hubId":     hubID.String(),
		"variantId": variantID.String(),
		"onDemand":  avail.OnDemand,
		"exhausted": avail.Exhausted(),
	}
	if avail.Count != nil {
		data["count"] = *avail.Count
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}
