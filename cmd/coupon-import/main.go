// Command coupon-import bulk-loads coupon definitions from gzipped JSON-lines
// files into the database. Files are scanned concurrently; duplicate codes
// across files are dropped with a bloom filter before upserting.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-service/internal/domain/coupon"
	"github.com/xenking/coupon-service/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	progressEvery = 100_000
)

// couponLine is one JSON-lines record in an import file.
type couponLine struct {
	Code                  string                     `json:"code"`
	Type                  coupon.Type                `json:"type"`
	Description           string                     `json:"description"`
	IsActive              *bool                      `json:"is_active"`
	UsageLimit            *int                       `json:"usage_limit"`
	ValidFrom             *time.Time                 `json:"valid_from"`
	ValidUntil            *time.Time                 `json:"valid_until"`
	MinimumOrderAmount    decimal.Decimal            `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal           `json:"maximum_discount_amount"`
	CartWise              *coupon.CartWiseDetails    `json:"cart_wise_details"`
	ProductWise           *coupon.ProductWiseDetails `json:"product_wise_details"`
	BxGy                  *coupon.BxGyDetails        `json:"bxgy_details"`
}

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

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more .jsonl.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("parsing import files", slog.Int("files", len(files)))

	parsed, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	coupons, skipped := dedupe(parsed)
	slog.Info("definitions parsed",
		slog.Int("unique", len(coupons)),
		slog.Int("duplicates_skipped", skipped),
	)
	if len(coupons) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeCoupons(ctx, repository.NewCouponRepository(pool), coupons)
}

// parseFiles scans every file concurrently and returns the parsed definitions
// in file order.
func parseFiles(ctx context.Context, files []string) ([][]*coupon.Coupon, error) {
	parsed := make([][]*coupon.Coupon, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(parseFile(ctx, i, path, parsed))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

func parseFile(ctx context.Context, idx int, path string, out [][]*coupon.Coupon) func() error {
	return func() error {
		var (
			coupons []*coupon.Coupon
			lines   uint64
		)
		if err := streamGzFile(ctx, path, func(line []byte) error {
			lines++
			if lines%progressEvery == 0 {
				slog.Info("parse progress", slog.String("file", path), slog.Uint64("lines", lines))
			}

			var rec couponLine
			if err := json.Unmarshal(line, &rec); err != nil {
				return errors.Wrapf(err, "line %d", lines)
			}
			c, err := rec.toCoupon()
			if err != nil {
				return errors.Wrapf(err, "line %d", lines)
			}
			coupons = append(coupons, c)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("parse complete", slog.String("file", path), slog.Int("definitions", len(coupons)))
		out[idx] = coupons
		return nil
	}
}

// dedupe keeps the first definition per code across all files. Membership is
// probabilistic: at the configured false positive rate roughly 1 in 10k
// unique codes may be dropped as a duplicate.
func dedupe(parsed [][]*coupon.Coupon) ([]*coupon.Coupon, int) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var (
		out     []*coupon.Coupon
		skipped int
	)
	for _, coupons := range parsed {
		for _, c := range coupons {
			if filter.TestString(c.Code) {
				skipped++
				continue
			}
			filter.AddString(c.Code)
			out = append(out, c)
		}
	}
	return out, skipped
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writeCoupons upserts all definitions.
func writeCoupons(ctx context.Context, repo *repository.CouponRepository, coupons []*coupon.Coupon) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	for i, c := range coupons {
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		if (i+1)%1000 == 0 || i+1 == len(coupons) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(coupons)))
		}
	}
	return nil
}

func (rec *couponLine) toCoupon() (*coupon.Coupon, error) {
	if rec.Code == "" {
		return nil, errors.New("missing code")
	}

	c := &coupon.Coupon{
		Code:               rec.Code,
		Type:               rec.Type,
		Description:        rec.Description,
		IsActive:           true,
		UsageLimit:         rec.UsageLimit,
		MinimumOrderAmount: rec.MinimumOrderAmount,
		ValidFrom:          time.Now().UTC(),
		ValidUntil:         rec.ValidUntil,
	}
	if rec.IsActive != nil {
		c.IsActive = *rec.IsActive
	}
	if rec.ValidFrom != nil {
		c.ValidFrom = *rec.ValidFrom
	}
	c.MaximumDiscountAmount = rec.MaximumDiscountAmount

	switch rec.Type {
	case coupon.TypeCartWise:
		if rec.CartWise == nil {
			return nil, errors.Errorf("coupon %q: missing cart_wise_details", rec.Code)
		}
		c.CartWise = rec.CartWise
	case coupon.TypeProductWise:
		if rec.ProductWise == nil {
			return nil, errors.Errorf("coupon %q: missing product_wise_details", rec.Code)
		}
		c.ProductWise = rec.ProductWise
	case coupon.TypeBxGy:
		if rec.BxGy == nil {
			return nil, errors.Errorf("coupon %q: missing bxgy_details", rec.Code)
		}
		c.BxGy = rec.BxGy
	default:
		return nil, errors.Errorf("coupon %q: unknown type %q", rec.Code, rec.Type)
	}
	return c, nil
}
