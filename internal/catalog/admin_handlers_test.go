package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/backend-hub/internal/money"
)

type stubOverrideStore struct {
	saved     *VariantOverride
	existing  *VariantOverride
	upsertErr error
}

func (s *stubOverrideStore) Override(_ context.Context, _, _ uuid.UUID) (*VariantOverride, error) {
	return s.existing, nil
}

func (s *stubOverrideStore) UpsertOverride(_ context.Context, o VariantOverride) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.saved = &o
	return nil
}

type stubInvalidator struct {
	hubs []uuid.UUID
}

func (s *stubInvalidator) Invalidate(_ context.Context, hubID uuid.UUID) error {
	s.hubs = append(s.hubs, hubID)
	return nil
}

func newAdminHandler(store *stubOverrideStore, invalidator *stubInvalidator) *AdminHandler {
	return &AdminHandler{
		Store:    store,
		Cache:    invalidator,
		Validate: validator.New(),
		Currency: money.Currency{Code: "AUD", Exponent: 2},
	}
}

func TestUpsertParsesPriceToMinorUnits(t *testing.T) {
	store := &stubOverrideStore{}
	invalidator := &stubInvalidator{}
	h := newAdminHandler(store, invalidator)
	hubID := uuid.New()
	variantID := uuid.New()

	body := `{"hubId":"` + hubID.String() + `","variantId":"` + variantID.String() + `","price":"12.50","countOnHand":8}`
	req := httptest.NewRequest(http.MethodPut, "/admin/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Upsert(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.saved)
	require.Equal(t, hubID, store.saved.HubID)
	require.NotNil(t, store.saved.Price)
	require.Equal(t, money.Money(1250), *store.saved.Price)
	require.NotNil(t, store.saved.CountOnHand)
	require.Equal(t, int64(8), *store.saved.CountOnHand)
	require.Equal(t, []uuid.UUID{hubID}, invalidator.hubs)
}

func TestUpsertRejectsExcessPrecision(t *testing.T) {
	h := newAdminHandler(&stubOverrideStore{}, &stubInvalidator{})
	body := `{"hubId":"` + uuid.NewString() + `","variantId":"` + uuid.NewString() + `","price":"12.505"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Upsert(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertResettableNeedsDefaultStock(t *testing.T) {
	h := newAdminHandler(&stubOverrideStore{}, &stubInvalidator{})
	body := `{"hubId":"` + uuid.NewString() + `","variantId":"` + uuid.NewString() + `","resettable":true}`
	req := httptest.NewRequest(http.MethodPut, "/admin/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Upsert(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertUnknownVariant(t *testing.T) {
	store := &stubOverrideStore{upsertErr: ErrVariantNotFound}
	h := newAdminHandler(store, &stubInvalidator{})
	body := `{"hubId":"` + uuid.NewString() + `","variantId":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Upsert(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOverride(t *testing.T) {
	hubID := uuid.New()
	variantID := uuid.New()
	price := money.Money(299)
	store := &stubOverrideStore{existing: &VariantOverride{
		HubID: hubID, VariantID: variantID, Price: &price,
	}}
	h := newAdminHandler(store, &stubInvalidator{})

	req := httptest.NewRequest(http.MethodGet, "/admin/overrides?hubId="+hubID.String()+"&variantId="+variantID.String(), nil)
	rec := httptest.NewRecorder()
	h.GetOverride(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, hubID.String(), body.Data["hubId"])
	require.Equal(t, float64(299), body.Data["price"])
}

func TestGetOverrideMissing(t *testing.T) {
	h := newAdminHandler(&stubOverrideStore{}, &stubInvalidator{})
	req := httptest.NewRequest(http.MethodGet, "/admin/overrides?hubId="+uuid.NewString()+"&variantId="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.GetOverride(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
