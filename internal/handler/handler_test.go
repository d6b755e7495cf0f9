package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

// stubStore is an in-memory coupon.Store for handler tests.
type stubStore struct {
	coupons map[uuid.UUID]*coupon.Coupon
	order   []uuid.UUID
}

func newStubStore(coupons ...*coupon.Coupon) *stubStore {
	s := &stubStore{coupons: make(map[uuid.UUID]*coupon.Coupon)}
	for _, c := range coupons {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.coupons[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	return s
}

func (s *stubStore) Create(_ context.Context, c *coupon.Coupon) error {
	for _, existing := range s.coupons {
		if existing.Code == c.Code {
			return coupon.ErrDuplicateCode
		}
	}
	c.ID = uuid.New()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.coupons[c.ID] = c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *stubStore) Update(_ context.Context, c *coupon.Coupon) error {
	existing, ok := s.coupons[c.ID]
	if !ok {
		return coupon.ErrNotFound
	}
	c.UsageCount = existing.UsageCount
	s.coupons[c.ID] = c
	return nil
}

func (s *stubStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.coupons[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.coupons, id)
	return nil
}

func (s *stubStore) List(_ context.Context, f coupon.ListFilter) ([]coupon.Coupon, int, error) {
	var out []coupon.Coupon
	for _, id := range s.order {
		c, ok := s.coupons[id]
		if !ok {
			continue
		}
		if f.Type != nil && c.Type != *f.Type {
			continue
		}
		if f.IsActive != nil && c.IsActive != *f.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (s *stubStore) FindByID(_ context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	c, ok := s.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (s *stubStore) FindActive(_ context.Context, _ time.Time) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, id := range s.order {
		if c, ok := s.coupons[id]; ok && c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubStore) IncrementUsage(_ context.Context, id uuid.UUID) error {
	c, ok := s.coupons[id]
	if !ok {
		return coupon.ErrNotFound
	}
	c.UsageCount++
	return nil
}

func newTestRouter(store *stubStore) http.Handler {
	return New(store, coupon.NewService(store)).Routes()
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (bool, map[string]any, string) {
	t.Helper()
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Success, env.Data, env.Message
}

func activeCartWise(code string, threshold, discount string) *coupon.Coupon {
	return &coupon.Coupon{
		ID:       uuid.New(),
		Code:     code,
		Type:     coupon.TypeCartWise,
		IsActive: true,
		CartWise: &coupon.CartWiseDetails{
			Threshold:    decimal.RequireFromString(threshold),
			Discount:     decimal.RequireFromString(discount),
			DiscountType: coupon.DiscountPercentage,
		},
	}
}

// --- Catalog CRUD ---

func TestCreateCoupon(t *testing.T) {
	router := newTestRouter(newStubStore())

	body := `{
		"code": "save10",
		"type": "cart-wise",
		"description": "10% off orders over 100",
		"cart_wise_details": {"threshold": 100, "discount": 10, "discount_type": "percentage"}
	}`
	rec := doRequest(t, router, http.MethodPost, "/coupons", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	success, data, _ := decodeEnvelope(t, rec)
	assert.True(t, success)
	assert.Equal(t, "cart-wise", data["type"])
	assert.Equal(t, true, data["is_active"])
	assert.NotEmpty(t, data["id"])
}

func TestCreateCoupon_DuplicateCode(t *testing.T) {
	router := newTestRouter(newStubStore(activeCartWise("SAVE10", "100", "10")))

	body := `{
		"code": "SAVE10",
		"type": "cart-wise",
		"description": "duplicate of an existing code",
		"cart_wise_details": {"threshold": 100, "discount": 10}
	}`
	rec := doRequest(t, router, http.MethodPost, "/coupons", body)

	require.Equal(t, http.StatusConflict, rec.Code)
	success, _, msg := decodeEnvelope(t, rec)
	assert.False(t, success)
	assert.Contains(t, msg, "already exists")
}

func TestCreateCoupon_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing code", `{"type": "cart-wise", "cart_wise_details": {"threshold": 1, "discount": 5}}`},
		{"unknown type", `{"code": "ABC", "type": "order-wise", "cart_wise_details": {"discount": 5}}`},
		{
			"details mismatch",
			`{"code": "ABC", "type": "cart-wise", "description": "x",
			  "product_wise_details": {"product_ids": [1], "discount": 5}}`,
		},
		{
			"two detail blocks",
			`{"code": "ABC", "type": "cart-wise", "description": "x",
			  "cart_wise_details": {"discount": 5},
			  "product_wise_details": {"product_ids": [1], "discount": 5}}`,
		},
		{
			"percentage over 100",
			`{"code": "ABC", "type": "cart-wise", "description": "x",
			  "cart_wise_details": {"discount": 150}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(newStubStore())
			rec := doRequest(t, router, http.MethodPost, "/coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetCoupon(t *testing.T) {
	c := activeCartWise("SAVE10", "100", "10")
	router := newTestRouter(newStubStore(c))

	rec := doRequest(t, router, http.MethodGet, "/coupons/"+c.ID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	_, data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, "SAVE10", data["code"])

	details, ok := data["cart_wise_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(100), details["threshold"])
}

func TestGetCoupon_NotFound(t *testing.T) {
	router := newTestRouter(newStubStore())

	rec := doRequest(t, router, http.MethodGet, "/coupons/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCoupon_InvalidID(t *testing.T) {
	router := newTestRouter(newStubStore())

	rec := doRequest(t, router, http.MethodGet, "/coupons/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCoupons_TypeFilter(t *testing.T) {
	bxgy := &coupon.Coupon{
		ID:       uuid.New(),
		Code:     "B2G1",
		Type:     coupon.TypeBxGy,
		IsActive: true,
		BxGy: &coupon.BxGyDetails{
			BuyProducts:          []coupon.ProductQuantity{{ProductID: 1, Quantity: 2}},
			GetProducts:          []coupon.ProductQuantity{{ProductID: 2, Quantity: 1}},
			RepetitionLimit:      3,
			BuyQuantityThreshold: 2,
		},
	}
	router := newTestRouter(newStubStore(activeCartWise("SAVE10", "100", "10"), bxgy))

	rec := doRequest(t, router, http.MethodGet, "/coupons?type=bxgy", "")

	require.Equal(t, http.StatusOK, rec.Code)
	_, data, _ := decodeEnvelope(t, rec)
	coupons, ok := data["coupons"].([]any)
	require.True(t, ok)
	require.Len(t, coupons, 1)
	assert.Equal(t, float64(1), data["total"])
}

func TestListCoupons_InvalidQuery(t *testing.T) {
	router := newTestRouter(newStubStore())

	for _, target := range []string{
		"/coupons?type=weekly",
		"/coupons?is_active=maybe",
		"/coupons?page=0",
		"/coupons?limit=1000",
	} {
		rec := doRequest(t, router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestUpdateCoupon(t *testing.T) {
	c := activeCartWise("SAVE10", "100", "10")
	c.UsageCount = 7
	store := newStubStore(c)
	router := newTestRouter(store)

	body := `{
		"code": "SAVE20",
		"type": "cart-wise",
		"description": "20% off orders over 200",
		"cart_wise_details": {"threshold": 200, "discount": 20}
	}`
	rec := doRequest(t, router, http.MethodPut, "/coupons/"+c.ID.String(), body)

	require.Equal(t, http.StatusOK, rec.Code)
	_, data, _ := decodeEnvelope(t, rec)
	assert.Equal(t, "SAVE20", data["code"])

	// Usage survives a definition replacement.
	updated, err := store.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.UsageCount)
}

func TestUpdateCoupon_NotFound(t *testing.T) {
	router := newTestRouter(newStubStore())

	body := `{"code": "SAVE20", "type": "cart-wise", "description": "no such coupon", "cart_wise_details": {"discount": 20}}`
	rec := doRequest(t, router, http.MethodPut, "/coupons/"+uuid.NewString(), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCoupon(t *testing.T) {
	c := activeCartWise("SAVE10", "100", "10")
	store := newStubStore(c)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodDelete, "/coupons/"+c.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/coupons/"+c.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Evaluation endpoints ---

func TestApplicableCoupons(t *testing.T) {
	small := activeCartWise("SMALL", "0", "5")
	big := activeCartWise("BIG", "0", "20")
	unreachable := activeCartWise("NEVER", "100000", "50")
	router := newTestRouter(newStubStore(small, big, unreachable))

	body := `{"cart": {"items": [{"product_id": 1, "quantity": 2, "price": 100}]}}`
	rec := doRequest(t, router, http.MethodPost, "/applicable-coupons", body)

	require.Equal(t, http.StatusOK, rec.Code)
	_, data, _ := decodeEnvelope(t, rec)
	offers, ok := data["applicable_coupons"].([]any)
	require.True(t, ok)
	require.Len(t, offers, 2)

	first := offers[0].(map[string]any)
	assert.Equal(t, "BIG", first["code"])
	assert.Equal(t, float64(40), first["discount"])
}

func TestApplicableCoupons_EmptyCart(t *testing.T) {
	router := newTestRouter(newStubStore())

	rec := doRequest(t, router, http.MethodPost, "/applicable-coupons", `{"cart": {"items": []}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyCoupon(t *testing.T) {
	c := activeCartWise("SAVE10", "100", "10")
	store := newStubStore(c)
	router := newTestRouter(store)

	body := `{"cart": {"items": [{"product_id": 1, "quantity": 2, "price": 100}]}}`
	rec := doRequest(t, router, http.MethodPost, "/apply-coupon/"+c.ID.String(), body)

	require.Equal(t, http.StatusOK, rec.Code)
	_, data, _ := decodeEnvelope(t, rec)
	cart, ok := data["updated_cart"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(200), cart["total_price"])
	assert.Equal(t, float64(20), cart["total_discount"])
	assert.Equal(t, float64(180), cart["final_price"])

	applied, ok := cart["applied_coupon"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SAVE10", applied["code"])

	assert.Equal(t, 1, c.UsageCount)
}

func TestApplyCoupon_BusinessRejections(t *testing.T) {
	inactive := activeCartWise("OFF", "0", "10")
	inactive.IsActive = false

	expired := activeCartWise("OLD", "0", "10")
	past := time.Now().Add(-24 * time.Hour)
	expired.ValidUntil = &past

	exhausted := activeCartWise("USED", "0", "10")
	limit := 1
	exhausted.UsageLimit = &limit
	exhausted.UsageCount = 1

	unreachable := activeCartWise("FAR", "100000", "10")

	router := newTestRouter(newStubStore(inactive, expired, exhausted, unreachable))
	body := `{"cart": {"items": [{"product_id": 1, "quantity": 1, "price": 100}]}}`

	for _, c := range []*coupon.Coupon{inactive, expired, exhausted, unreachable} {
		rec := doRequest(t, router, http.MethodPost, "/apply-coupon/"+c.ID.String(), body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, c.Code)
		success, _, msg := decodeEnvelope(t, rec)
		assert.False(t, success)
		assert.True(t, strings.HasPrefix(msg, "coupon"), msg)
	}
}

func TestApplyCoupon_NotFound(t *testing.T) {
	router := newTestRouter(newStubStore())

	body := `{"cart": {"items": [{"product_id": 1, "quantity": 1, "price": 100}]}}`
	rec := doRequest(t, router, http.MethodPost, "/apply-coupon/"+uuid.NewString(), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
