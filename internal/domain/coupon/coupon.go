package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type discriminates the three supported coupon kinds.
type Type string

const (
	// TypeCartWise discounts the whole cart once its subtotal crosses a threshold.
	TypeCartWise Type = "cart-wise"
	// TypeProductWise discounts only the line items of designated products.
	TypeProductWise Type = "product-wise"
	// TypeBxGy grants free units of "get" products after buying enough "buy" products.
	TypeBxGy Type = "bxgy"
)

// DiscountType enumerates how a discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage treats the discount value as a percentage.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed treats the discount value as a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// Business errors produced by the engine and its orchestration layer. They are
// surfaced to callers unchanged and never retried internally.
var (
	// ErrNotFound is returned when a coupon id is unknown to the catalog.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when applying a coupon that is switched off.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when a coupon's validity window has passed.
	ErrExpired = errors.New("coupon has expired")
	// ErrUsageLimitExceeded is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
	// ErrNotApplicable is returned when a cart fails the coupon's applicability rules.
	ErrNotApplicable = errors.New("coupon is not applicable to this cart")
	// ErrDuplicateCode is returned by the catalog when a coupon code already exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Coupon is a discount-coupon definition. Exactly one of the detail blocks is
// populated, matching Type; the other two are nil. The record is immutable for
// the duration of an evaluation.
type Coupon struct {
	ID                    uuid.UUID
	Code                  string
	Type                  Type
	Description           string
	IsActive              bool
	UsageLimit            *int
	UsageCount            int
	ValidFrom             time.Time
	ValidUntil            *time.Time
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount *decimal.Decimal

	CartWise    *CartWiseDetails
	ProductWise *ProductWiseDetails
	BxGy        *BxGyDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartWiseDetails configures a cart-wide discount.
type CartWiseDetails struct {
	Threshold    decimal.Decimal `json:"threshold"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType DiscountType    `json:"discount_type"`
}

// ProductWiseDetails configures a per-product discount.
//
// Categories, Brands, and ExcludeProducts are stored and returned but not
// consulted by the engine.
type ProductWiseDetails struct {
	ProductIDs      []int64         `json:"product_ids"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountType    DiscountType    `json:"discount_type"`
	Categories      []string        `json:"categories,omitempty"`
	Brands          []string        `json:"brands,omitempty"`
	ExcludeProducts []int64         `json:"exclude_products,omitempty"`
}

// ProductQuantity pairs a product with a unit count in a BxGy rule.
type ProductQuantity struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// BxGyDetails configures a buy-X-get-Y offer. The offer multiplies once per
// BuyQuantityThreshold qualifying units in the cart, capped by RepetitionLimit.
type BxGyDetails struct {
	BuyProducts          []ProductQuantity `json:"buy_products"`
	GetProducts          []ProductQuantity `json:"get_products"`
	RepetitionLimit      int               `json:"repetition_limit"`
	BuyQuantityThreshold int               `json:"buy_quantity_threshold"`
}

// Cart is the transient evaluation input. It is never persisted or mutated by
// the engine.
type Cart struct {
	Items []CartItem
}

// CartItem is a single cart line.
type CartItem struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal returns the sum of price * quantity across all cart items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// DiscountedCart is the engine's application-mode output: the input cart
// projected with per-item and cart-level discount figures. It is created fresh
// per evaluation.
type DiscountedCart struct {
	Items         []DiscountedItem
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalPrice    decimal.Decimal
	AppliedCoupon AppliedCoupon
}

// DiscountedItem is a cart line with its share of the applied discount.
type DiscountedItem struct {
	ProductID       int64
	Quantity        int
	Price           decimal.Decimal
	TotalDiscount   decimal.Decimal
	DiscountedPrice decimal.Decimal
	FreeQuantity    int
}

// AppliedCoupon references the coupon that produced a DiscountedCart.
type AppliedCoupon struct {
	ID   uuid.UUID
	Code string
	Type Type
}

// ListFilter narrows catalog listings. Nil fields match everything.
type ListFilter struct {
	Type     *Type
	IsActive *bool
	Page     int
	Limit    int
}

// Catalog is the read/increment surface the engine orchestration consumes.
// IncrementUsage must be atomic; the engine never does read-modify-write on
// usage counters itself.
type Catalog interface {
	FindActive(ctx context.Context, now time.Time) ([]Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// Store is the full catalog persistence contract: the engine-facing Catalog
// plus the CRUD surface used by the HTTP layer.
type Store interface {
	Catalog

	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]Coupon, int, error)
}
