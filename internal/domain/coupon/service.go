package coupon

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Offer is one listing-mode result: an applicable coupon together with the
// discount it would yield for the evaluated cart.
type Offer struct {
	CouponID    uuid.UUID
	Code        string
	Type        Type
	Discount    decimal.Decimal
	Description string
}

// Service orchestrates engine evaluation over a Catalog. It holds no mutable
// state; the clock is injectable for tests.
type Service struct {
	catalog Catalog
	now     func() time.Time
}

// NewService creates a Service backed by the given catalog.
func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog, now: time.Now}
}

// ListApplicable evaluates every active coupon against the cart and returns
// the applicable ones sorted by discount, highest first. Ties keep catalog
// order.
func (s *Service) ListApplicable(ctx context.Context, cart Cart) ([]Offer, error) {
	active, err := s.catalog.FindActive(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "find active coupons")
	}

	subtotal := cart.Subtotal()

	offers := make([]Offer, 0, len(active))
	for i := range active {
		c := &active[i]
		if !IsApplicable(c, cart, subtotal) {
			continue
		}
		offers = append(offers, Offer{
			CouponID:    c.ID,
			Code:        c.Code,
			Type:        c.Type,
			Discount:    CalculateDiscount(c, cart, subtotal).Round(2),
			Description: c.Description,
		})
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Discount.GreaterThan(offers[j].Discount)
	})
	return offers, nil
}

// Apply validates the coupon against the cart and materializes the discounted
// cart. Preconditions are checked in order, each failing fast with its own
// sentinel error: existence, active flag, expiry, usage limit, applicability.
// On success the catalog's usage counter is incremented.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, cart Cart) (*DiscountedCart, error) {
	c, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find coupon")
	}

	now := s.now()

	if !c.IsActive {
		return nil, ErrInactive
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return nil, ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return nil, ErrUsageLimitExceeded
	}
	if !IsApplicable(c, cart, cart.Subtotal()) {
		return nil, ErrNotApplicable
	}

	result := ApplyDiscount(c, cart)

	if err := s.catalog.IncrementUsage(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "increment coupon usage")
	}
	return &result, nil
}
