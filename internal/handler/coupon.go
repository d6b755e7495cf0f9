package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

// CreateCoupon handles POST /coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := req.toCoupon()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, newCouponResponse(*c))
}

// ListCoupons handles GET /coupons with optional type, is_active, page and
// limit query parameters.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	coupons, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	items := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		items[i] = newCouponResponse(c)
	}
	writeData(w, http.StatusOK, couponListResponse{
		Coupons: items,
		Total:   total,
		Page:    filter.Page,
		Limit:   filter.Limit,
	})
}

// GetCoupon handles GET /coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	c, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newCouponResponse(*c))
}

// UpdateCoupon handles PUT /coupons/{id}. The full definition is replaced;
// the usage counter is preserved.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := req.toCoupon()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.ID = id

	if err := h.store.Update(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newCouponResponse(*c))
}

// DeleteCoupon handles DELETE /coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id.String()})
}

func couponID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (coupon.ListFilter, error) {
	q := r.URL.Query()
	f := coupon.ListFilter{Page: 1, Limit: 10}

	if raw := q.Get("type"); raw != "" {
		t := coupon.Type(raw)
		switch t {
		case coupon.TypeCartWise, coupon.TypeProductWise, coupon.TypeBxGy:
			f.Type = &t
		default:
			return f, errInvalidQuery("type", raw)
		}
	}
	if raw := q.Get("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errInvalidQuery("is_active", raw)
		}
		f.IsActive = &v
	}
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return f, errInvalidQuery("page", raw)
		}
		f.Page = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			return f, errInvalidQuery("limit", raw)
		}
		f.Limit = v
	}
	return f, nil
}

func errInvalidQuery(param, value string) error {
	return errors.Errorf("invalid query parameter %s: %q", param, value)
}
