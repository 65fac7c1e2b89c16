package shopfront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/common"
)

type Handler struct {
	Svc *Service
}

// Products handles GET /shopfront/{hubID}/products?orderCycleId=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopfront service not configured", nil)
		return
	}
	hubID, err := uuid.Parse(chi.URLParam(r, "hubID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid hub id", nil)
		return
	}
	cycleID, err := uuid.Parse(r.URL.Query().Get("orderCycleId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderCycleId", nil)
		return
	}
	listing, err := h.Svc.List(r.Context(), hubID, cycleID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to build listing", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	items := listing.Items
	total := len(items)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"hubId":        listing.HubID.String(),
			"orderCycleId": listing.OrderCycleID.String(),
			"items":        items[start:end],
		},
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}
