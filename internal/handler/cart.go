package handler

import (
	"net/http"
)

// ApplicableCoupons handles POST /applicable-coupons: evaluates every active
// coupon against the posted cart and lists the applicable ones with their
// discounts, highest first.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offers, err := h.service.ListApplicable(r.Context(), req.toCart())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]offerResponse, len(offers))
	for i, o := range offers {
		out[i] = offerResponse{
			CouponID:    o.CouponID.String(),
			Code:        o.Code,
			Type:        string(o.Type),
			Discount:    o.Discount.InexactFloat64(),
			Description: o.Description,
		}
	}
	writeData(w, http.StatusOK, applicableCouponsResponse{ApplicableCoupons: out})
}

// ApplyCoupon handles POST /apply-coupon/{id}: applies the coupon to the
// posted cart and returns the discounted projection.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Apply(r.Context(), id, req.toCart())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updatedCartResponse{UpdatedCart: newDiscountedCartResponse(*result)})
}
