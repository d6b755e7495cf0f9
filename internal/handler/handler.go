// Package handler exposes the coupon catalog and evaluation engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

// Handler serves the coupon API. All responses share the success envelope.
type Handler struct {
	store    coupon.Store
	service  *coupon.Service
	validate *validator.Validate
}

// New creates a Handler over the given store and evaluation service.
func New(store coupon.Store, service *coupon.Service) *Handler {
	return &Handler{
		store:    store,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCoupon)
			r.Put("/", h.UpdateCoupon)
			r.Delete("/", h.DeleteCoupon)
		})
	})

	r.Post("/applicable-coupons", h.ApplicableCoupons)
	r.Post("/apply-coupon/{id}", h.ApplyCoupon)

	return r
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// respondError translates domain errors into HTTP status codes. Unexpected
// errors are logged and masked as 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitExceeded),
		errors.Is(err, coupon.ErrNotApplicable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
