package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

type couponRequest struct {
	Code                  string     `json:"code" validate:"required,min=3,max=32"`
	Type                  string     `json:"type" validate:"required,oneof=cart-wise product-wise bxgy"`
	Description           string     `json:"description" validate:"required,max=500"`
	IsActive              *bool      `json:"is_active"`
	UsageLimit            *int       `json:"usage_limit" validate:"omitempty,min=1"`
	ValidFrom             *time.Time `json:"valid_from"`
	ValidUntil            *time.Time `json:"valid_until"`
	MinimumOrderAmount    float64    `json:"minimum_order_amount" validate:"min=0"`
	MaximumDiscountAmount *float64   `json:"maximum_discount_amount" validate:"omitempty,gt=0"`

	CartWise    *cartWiseDetailsRequest    `json:"cart_wise_details"`
	ProductWise *productWiseDetailsRequest `json:"product_wise_details"`
	BxGy        *bxgyDetailsRequest        `json:"bxgy_details"`
}

type cartWiseDetailsRequest struct {
	Threshold    float64 `json:"threshold" validate:"min=0"`
	Discount     float64 `json:"discount" validate:"required,gt=0"`
	DiscountType string  `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
}

type productWiseDetailsRequest struct {
	ProductIDs      []int64  `json:"product_ids" validate:"required,min=1,dive,gt=0"`
	Discount        float64  `json:"discount" validate:"required,gt=0"`
	DiscountType    string   `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	Categories      []string `json:"categories"`
	Brands          []string `json:"brands"`
	ExcludeProducts []int64  `json:"exclude_products" validate:"omitempty,dive,gt=0"`
}

type bxgyDetailsRequest struct {
	BuyProducts          []productQuantityRequest `json:"buy_products" validate:"required,min=1,dive"`
	GetProducts          []productQuantityRequest `json:"get_products" validate:"required,min=1,dive"`
	RepetitionLimit      int                      `json:"repetition_limit" validate:"required,min=2"`
	BuyQuantityThreshold int                      `json:"buy_quantity_threshold" validate:"required,min=1"`
}

type productQuantityRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// toCoupon converts the request into a domain coupon, enforcing the
// cross-field rules the tag validator cannot express: exactly one detail
// block, matching the declared type, and percentage discounts at most 100.
func (req *couponRequest) toCoupon() (*coupon.Coupon, error) {
	c := &coupon.Coupon{
		Code:               req.Code,
		Type:               coupon.Type(req.Type),
		Description:        req.Description,
		IsActive:           true,
		UsageLimit:         req.UsageLimit,
		MinimumOrderAmount: decimal.NewFromFloat(req.MinimumOrderAmount),
		ValidFrom:          time.Now().UTC(),
		ValidUntil:         req.ValidUntil,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if req.ValidFrom != nil {
		c.ValidFrom = *req.ValidFrom
	}
	if req.MaximumDiscountAmount != nil {
		v := decimal.NewFromFloat(*req.MaximumDiscountAmount)
		c.MaximumDiscountAmount = &v
	}
	if req.ValidUntil != nil && req.ValidUntil.Before(c.ValidFrom) {
		return nil, errors.New("valid_until must be after valid_from")
	}

	blocks := 0
	for _, present := range []bool{req.CartWise != nil, req.ProductWise != nil, req.BxGy != nil} {
		if present {
			blocks++
		}
	}
	if blocks != 1 {
		return nil, errors.New("exactly one details block must be provided")
	}

	switch c.Type {
	case coupon.TypeCartWise:
		if req.CartWise == nil {
			return nil, errors.New("cart_wise_details is required for type cart-wise")
		}
		dt, err := discountType(req.CartWise.DiscountType, req.CartWise.Discount)
		if err != nil {
			return nil, err
		}
		c.CartWise = &coupon.CartWiseDetails{
			Threshold:    decimal.NewFromFloat(req.CartWise.Threshold),
			Discount:     decimal.NewFromFloat(req.CartWise.Discount),
			DiscountType: dt,
		}
	case coupon.TypeProductWise:
		if req.ProductWise == nil {
			return nil, errors.New("product_wise_details is required for type product-wise")
		}
		dt, err := discountType(req.ProductWise.DiscountType, req.ProductWise.Discount)
		if err != nil {
			return nil, err
		}
		c.ProductWise = &coupon.ProductWiseDetails{
			ProductIDs:      req.ProductWise.ProductIDs,
			Discount:        decimal.NewFromFloat(req.ProductWise.Discount),
			DiscountType:    dt,
			Categories:      req.ProductWise.Categories,
			Brands:          req.ProductWise.Brands,
			ExcludeProducts: req.ProductWise.ExcludeProducts,
		}
	case coupon.TypeBxGy:
		if req.BxGy == nil {
			return nil, errors.New("bxgy_details is required for type bxgy")
		}
		c.BxGy = &coupon.BxGyDetails{
			BuyProducts:          toProductQuantities(req.BxGy.BuyProducts),
			GetProducts:          toProductQuantities(req.BxGy.GetProducts),
			RepetitionLimit:      req.BxGy.RepetitionLimit,
			BuyQuantityThreshold: req.BxGy.BuyQuantityThreshold,
		}
	}
	return c, nil
}

// discountType applies the percentage default and bounds percentage values.
func discountType(raw string, discount float64) (coupon.DiscountType, error) {
	dt := coupon.DiscountType(raw)
	if dt == "" {
		dt = coupon.DiscountPercentage
	}
	if dt == coupon.DiscountPercentage && discount > 100 {
		return "", errors.New("percentage discount cannot exceed 100")
	}
	return dt, nil
}

func toProductQuantities(reqs []productQuantityRequest) []coupon.ProductQuantity {
	out := make([]coupon.ProductQuantity, len(reqs))
	for i, pq := range reqs {
		out[i] = coupon.ProductQuantity{ProductID: pq.ProductID, Quantity: pq.Quantity}
	}
	return out
}

type cartRequest struct {
	Cart cartPayload `json:"cart" validate:"required"`
}

type cartPayload struct {
	Items []cartItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cartItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	Price     float64 `json:"price" validate:"min=0"`
}

func (req *cartRequest) toCart() coupon.Cart {
	items := make([]coupon.CartItem, len(req.Cart.Items))
	for i, it := range req.Cart.Items {
		items[i] = coupon.CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     decimal.NewFromFloat(it.Price),
		}
	}
	return coupon.Cart{Items: items}
}
