package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock catalog ---

type mockCatalog struct {
	active     []Coupon
	byID       map[uuid.UUID]*Coupon
	findErr    error
	incErr     error
	increments []uuid.UUID
}

func (m *mockCatalog) FindActive(_ context.Context, _ time.Time) ([]Coupon, error) {
	return m.active, m.findErr
}

func (m *mockCatalog) FindByID(_ context.Context, id uuid.UUID) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCatalog) IncrementUsage(_ context.Context, id uuid.UUID) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.increments = append(m.increments, id)
	return nil
}

func newCatalog(coupons ...*Coupon) *mockCatalog {
	byID := make(map[uuid.UUID]*Coupon, len(coupons))
	active := make([]Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		byID[c.ID] = c
		active = append(active, *c)
	}
	return &mockCatalog{active: active, byID: byID}
}

func newTestService(catalog *mockCatalog) *Service {
	svc := NewService(catalog)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Listing ---

func TestListApplicable_FiltersAndSorts(t *testing.T) {
	small := cartWiseCoupon("0", "5", DiscountPercentage)
	small.Code = "SMALL"
	big := cartWiseCoupon("0", "20", DiscountPercentage)
	big.Code = "BIG"
	outOfReach := cartWiseCoupon("100000", "50", DiscountPercentage)
	outOfReach.Code = "NEVER"

	svc := newTestService(newCatalog(small, big, outOfReach))

	offers, err := svc.ListApplicable(context.Background(), cart(item(1, 1, "200")))
	require.NoError(t, err)
	require.Len(t, offers, 2)

	// Highest discount first; the inapplicable coupon is excluded.
	assert.Equal(t, "BIG", offers[0].Code)
	assert.True(t, d("40").Equal(offers[0].Discount))
	assert.Equal(t, "SMALL", offers[1].Code)
	assert.True(t, d("10").Equal(offers[1].Discount))
}

func TestListApplicable_TiesKeepCatalogOrder(t *testing.T) {
	first := cartWiseCoupon("0", "10", DiscountPercentage)
	first.Code = "FIRST"
	second := cartWiseCoupon("0", "10", DiscountPercentage)
	second.Code = "SECOND"

	svc := newTestService(newCatalog(first, second))

	offers, err := svc.ListApplicable(context.Background(), cart(item(1, 1, "100")))
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "FIRST", offers[0].Code)
	assert.Equal(t, "SECOND", offers[1].Code)
}

func TestListApplicable_EmptyCatalog(t *testing.T) {
	svc := newTestService(newCatalog())

	offers, err := svc.ListApplicable(context.Background(), cart(item(1, 1, "100")))
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestListApplicable_CatalogError(t *testing.T) {
	catalog := newCatalog()
	catalog.findErr = errors.New("db down")
	svc := newTestService(catalog)

	_, err := svc.ListApplicable(context.Background(), cart(item(1, 1, "100")))
	require.Error(t, err)
}

// --- Application ---

func TestApply_Success(t *testing.T) {
	c := cartWiseCoupon("100", "10", DiscountPercentage)
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	result, err := svc.Apply(context.Background(), c.ID, cart(item(1, 2, "100")))
	require.NoError(t, err)

	assert.True(t, d("20").Equal(result.TotalDiscount))
	assert.True(t, d("180").Equal(result.FinalPrice))
	assert.Equal(t, c.ID, result.AppliedCoupon.ID)
	require.Len(t, catalog.increments, 1)
	assert.Equal(t, c.ID, catalog.increments[0])
}

func TestApply_NotFound(t *testing.T) {
	svc := newTestService(newCatalog())

	_, err := svc.Apply(context.Background(), uuid.New(), cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApply_Inactive(t *testing.T) {
	c := cartWiseCoupon("0", "10", DiscountPercentage)
	c.IsActive = false
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrInactive)
	assert.Empty(t, catalog.increments)
}

func TestApply_Expired(t *testing.T) {
	c := cartWiseCoupon("0", "10", DiscountPercentage)
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.ValidUntil = &past
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrExpired)

	// Usage count untouched on rejection.
	assert.Empty(t, catalog.increments)
	assert.Equal(t, 0, c.UsageCount)
}

func TestApply_UsageLimitExceeded(t *testing.T) {
	c := cartWiseCoupon("0", "10", DiscountPercentage)
	limit := 5
	c.UsageLimit = &limit
	c.UsageCount = 5
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrUsageLimitExceeded)
	assert.Empty(t, catalog.increments)
}

func TestApply_NotApplicable(t *testing.T) {
	c := cartWiseCoupon("1000", "10", DiscountPercentage)
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrNotApplicable)
	assert.Empty(t, catalog.increments)
}

func TestApply_PreconditionOrder(t *testing.T) {
	// An inactive, expired, exhausted, inapplicable coupon fails on the first
	// check in the chain: the active flag.
	c := cartWiseCoupon("100000", "10", DiscountPercentage)
	c.IsActive = false
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.ValidUntil = &past
	limit := 1
	c.UsageLimit = &limit
	c.UsageCount = 1
	catalog := newCatalog(c)
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.ErrorIs(t, err, ErrInactive)
}

func TestApply_IncrementError(t *testing.T) {
	c := cartWiseCoupon("0", "10", DiscountPercentage)
	catalog := newCatalog(c)
	catalog.incErr = errors.New("db down")
	svc := newTestService(catalog)

	_, err := svc.Apply(context.Background(), c.ID, cart(item(1, 1, "100")))
	require.Error(t, err)
}
