package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

// envelope is the uniform response wrapper. Data is present on success,
// Message on failure.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

type couponResponse struct {
	ID                    string     `json:"id"`
	Code                  string     `json:"code"`
	Type                  string     `json:"type"`
	Description           string     `json:"description,omitempty"`
	IsActive              bool       `json:"is_active"`
	UsageLimit            *int       `json:"usage_limit,omitempty"`
	UsageCount            int        `json:"usage_count"`
	ValidFrom             time.Time  `json:"valid_from"`
	ValidUntil            *time.Time `json:"valid_until,omitempty"`
	MinimumOrderAmount    float64    `json:"minimum_order_amount"`
	MaximumDiscountAmount *float64   `json:"maximum_discount_amount,omitempty"`

	CartWise    *cartWiseDetailsResponse    `json:"cart_wise_details,omitempty"`
	ProductWise *productWiseDetailsResponse `json:"product_wise_details,omitempty"`
	BxGy        *bxgyDetailsResponse        `json:"bxgy_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type cartWiseDetailsResponse struct {
	Threshold    float64 `json:"threshold"`
	Discount     float64 `json:"discount"`
	DiscountType string  `json:"discount_type"`
}

type productWiseDetailsResponse struct {
	ProductIDs      []int64  `json:"product_ids"`
	Discount        float64  `json:"discount"`
	DiscountType    string   `json:"discount_type"`
	Categories      []string `json:"categories,omitempty"`
	Brands          []string `json:"brands,omitempty"`
	ExcludeProducts []int64  `json:"exclude_products,omitempty"`
}

type bxgyDetailsResponse struct {
	BuyProducts          []productQuantityResponse `json:"buy_products"`
	GetProducts          []productQuantityResponse `json:"get_products"`
	RepetitionLimit      int                       `json:"repetition_limit"`
	BuyQuantityThreshold int                       `json:"buy_quantity_threshold"`
}

type productQuantityResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func newCouponResponse(c coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:                 c.ID.String(),
		Code:               c.Code,
		Type:               string(c.Type),
		Description:        c.Description,
		IsActive:           c.IsActive,
		UsageLimit:         c.UsageLimit,
		UsageCount:         c.UsageCount,
		ValidFrom:          c.ValidFrom,
		ValidUntil:         c.ValidUntil,
		MinimumOrderAmount: money(c.MinimumOrderAmount),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.MaximumDiscountAmount != nil {
		v := money(*c.MaximumDiscountAmount)
		resp.MaximumDiscountAmount = &v
	}

	switch {
	case c.CartWise != nil:
		resp.CartWise = &cartWiseDetailsResponse{
			Threshold:    money(c.CartWise.Threshold),
			Discount:     c.CartWise.Discount.InexactFloat64(),
			DiscountType: string(c.CartWise.DiscountType),
		}
	case c.ProductWise != nil:
		resp.ProductWise = &productWiseDetailsResponse{
			ProductIDs:      c.ProductWise.ProductIDs,
			Discount:        c.ProductWise.Discount.InexactFloat64(),
			DiscountType:    string(c.ProductWise.DiscountType),
			Categories:      c.ProductWise.Categories,
			Brands:          c.ProductWise.Brands,
			ExcludeProducts: c.ProductWise.ExcludeProducts,
		}
	case c.BxGy != nil:
		resp.BxGy = &bxgyDetailsResponse{
			BuyProducts:          newProductQuantities(c.BxGy.BuyProducts),
			GetProducts:          newProductQuantities(c.BxGy.GetProducts),
			RepetitionLimit:      c.BxGy.RepetitionLimit,
			BuyQuantityThreshold: c.BxGy.BuyQuantityThreshold,
		}
	}
	return resp
}

func newProductQuantities(pqs []coupon.ProductQuantity) []productQuantityResponse {
	out := make([]productQuantityResponse, len(pqs))
	for i, pq := range pqs {
		out[i] = productQuantityResponse{ProductID: pq.ProductID, Quantity: pq.Quantity}
	}
	return out
}

type couponListResponse struct {
	Coupons []couponResponse `json:"coupons"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

type offerResponse struct {
	CouponID    string  `json:"coupon_id"`
	Code        string  `json:"code"`
	Type        string  `json:"type"`
	Discount    float64 `json:"discount"`
	Description string  `json:"description,omitempty"`
}

type applicableCouponsResponse struct {
	ApplicableCoupons []offerResponse `json:"applicable_coupons"`
}

type updatedCartResponse struct {
	UpdatedCart discountedCartResponse `json:"updated_cart"`
}

type discountedCartResponse struct {
	Items         []discountedItemResponse `json:"items"`
	TotalPrice    float64                  `json:"total_price"`
	TotalDiscount float64                  `json:"total_discount"`
	FinalPrice    float64                  `json:"final_price"`
	AppliedCoupon appliedCouponResponse    `json:"applied_coupon"`
}

type discountedItemResponse struct {
	ProductID       int64   `json:"product_id"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	TotalDiscount   float64 `json:"total_discount"`
	DiscountedPrice float64 `json:"discounted_price"`
	FreeQuantity    int     `json:"free_quantity,omitempty"`
}

type appliedCouponResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Type string `json:"type"`
}

func newDiscountedCartResponse(dc coupon.DiscountedCart) discountedCartResponse {
	items := make([]discountedItemResponse, len(dc.Items))
	for i, it := range dc.Items {
		items[i] = discountedItemResponse{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			Price:           money(it.Price),
			TotalDiscount:   money(it.TotalDiscount),
			DiscountedPrice: money(it.DiscountedPrice),
			FreeQuantity:    it.FreeQuantity,
		}
	}
	return discountedCartResponse{
		Items:         items,
		TotalPrice:    money(dc.TotalPrice),
		TotalDiscount: money(dc.TotalDiscount),
		FinalPrice:    money(dc.FinalPrice),
		AppliedCoupon: appliedCouponResponse{
			ID:   dc.AppliedCoupon.ID.String(),
			Code: dc.AppliedCoupon.Code,
			Type: string(dc.AppliedCoupon.Type),
		},
	}
}
