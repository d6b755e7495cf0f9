// Command seed-db runs migrations and seeds one demo coupon of each kind.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-service/internal/domain/coupon"
	"github.com/xenking/coupon-service/internal/repository"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedCoupons(ctx, repository.NewCouponRepository(pool))
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding demo coupons")

	maxDiscount := decimal.NewFromInt(100)
	coupons := []*coupon.Coupon{
		{
			Code:                  "SAVE10",
			Type:                  coupon.TypeCartWise,
			Description:           "10% off carts over 500, capped at 100",
			IsActive:              true,
			MaximumDiscountAmount: &maxDiscount,
			CartWise: &coupon.CartWiseDetails{
				Threshold:    decimal.NewFromInt(500),
				Discount:     decimal.NewFromInt(10),
				DiscountType: coupon.DiscountPercentage,
			},
		},
		{
			Code:        "COFFEE20",
			Type:        coupon.TypeProductWise,
			Description: "20% off selected coffee blends",
			IsActive:    true,
			ProductWise: &coupon.ProductWiseDetails{
				ProductIDs:   []int64{101, 102, 103},
				Discount:     decimal.NewFromInt(20),
				DiscountType: coupon.DiscountPercentage,
				Categories:   []string{"coffee"},
			},
		},
		{
			Code:        "B2G1FREE",
			Type:        coupon.TypeBxGy,
			Description: "Buy 2 of X or Y, get 1 of Z free (up to 3 times)",
			IsActive:    true,
			BxGy: &coupon.BxGyDetails{
				BuyProducts: []coupon.ProductQuantity{
					{ProductID: 1, Quantity: 1},
					{ProductID: 2, Quantity: 1},
				},
				GetProducts: []coupon.ProductQuantity{
					{ProductID: 3, Quantity: 1},
				},
				RepetitionLimit:      3,
				BuyQuantityThreshold: 2,
			},
		},
	}

	for _, c := range coupons {
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("type", string(c.Type)))
	}
	return nil
}
