package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupon-service/internal/domain/coupon"
)

const (
	couponColumns = `id, code, type, description, is_active, usage_limit, usage_count,
		valid_from, valid_until, minimum_order_amount, maximum_discount_amount, details,
		created_at, updated_at`

	selectCouponSQL = `SELECT ` + couponColumns + ` FROM coupons`

	insertCouponSQL = `INSERT INTO coupons
		(code, type, description, is_active, usage_limit, valid_from, valid_until,
		 minimum_order_amount, maximum_discount_amount, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, usage_count, created_at, updated_at`

	updateCouponSQL = `UPDATE coupons SET
		code = $2, type = $3, description = $4, is_active = $5, usage_limit = $6,
		valid_from = $7, valid_until = $8, minimum_order_amount = $9,
		maximum_discount_amount = $10, details = $11, updated_at = now()
		WHERE id = $1
		RETURNING usage_count, created_at, updated_at`

	upsertCouponSQL = `INSERT INTO coupons
		(code, type, description, is_active, usage_limit, valid_from, valid_until,
		 minimum_order_amount, maximum_discount_amount, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			usage_limit = EXCLUDED.usage_limit,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			minimum_order_amount = EXCLUDED.minimum_order_amount,
			maximum_discount_amount = EXCLUDED.maximum_discount_amount,
			details = EXCLUDED.details,
			updated_at = now()`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	findActiveCouponsSQL = selectCouponSQL + ` WHERE is_active = TRUE
		AND valid_from <= $1 AND (valid_until IS NULL OR valid_until >= $1)`

	incrementUsageSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL. Type-specific
// detail blocks are stored in a JSONB column keyed by the coupon type.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create persists a new coupon. The code is normalized to upper case. On
// success the generated id and timestamps are set on c.
// Returns coupon.ErrDuplicateCode when the code is already taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	c.Code = normalizeCode(c.Code)

	details, err := marshalDetails(c)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, insertCouponSQL,
		c.Code, c.Type, c.Description, c.IsActive, c.UsageLimit,
		c.ValidFrom, c.ValidUntil, c.MinimumOrderAmount, c.MaximumDiscountAmount, details,
	).Scan(&c.ID, &c.UsageCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update replaces the definition of an existing coupon by id. The usage
// counter is never written by updates. Returns coupon.ErrNotFound when the id
// is unknown and coupon.ErrDuplicateCode when the new code collides.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	c.Code = normalizeCode(c.Code)

	details, err := marshalDetails(c)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, updateCouponSQL,
		c.ID, c.Code, c.Type, c.Description, c.IsActive, c.UsageLimit,
		c.ValidFrom, c.ValidUntil, c.MinimumOrderAmount, c.MaximumDiscountAmount, details,
	).Scan(&c.UsageCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("updating coupon %s: %w", c.ID, err)
	}
	return nil
}

// Upsert inserts the coupon or replaces the existing definition with the same
// code. Used by the import and seed tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	c.Code = normalizeCode(c.Code)

	details, err := marshalDetails(c)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, upsertCouponSQL,
		c.Code, c.Type, c.Description, c.IsActive, c.UsageLimit,
		c.ValidFrom, c.ValidUntil, c.MinimumOrderAmount, c.MaximumDiscountAmount, details,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a coupon by id. Returns coupon.ErrNotFound when nothing was
// deleted.
func (r *CouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// FindByID returns a single coupon by its identifier.
func (r *CouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, selectCouponSQL+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %s: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %s: %w", id, err)
	}
	return &c, nil
}

// List returns a page of coupons matching the filter, newest first, together
// with the total match count.
func (r *CouponRepository) List(ctx context.Context, f coupon.ListFilter) ([]coupon.Coupon, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Type != nil {
		args = append(args, *f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM coupons`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, (page-1)*limit)

	query := selectCouponSQL + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return items, total, nil
}

// FindActive returns every coupon that is switched on and inside its validity
// window at the given instant.
func (r *CouponRepository) FindActive(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findActiveCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("finding active coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// IncrementUsage atomically increments the usage counter for the given coupon.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, incrementUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %s: %w", id, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		usageLimit *int32
		details    []byte
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Type, &c.Description, &c.IsActive,
		&usageLimit, &c.UsageCount, &c.ValidFrom, &c.ValidUntil,
		&c.MinimumOrderAmount, &c.MaximumDiscountAmount, &details,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	if usageLimit != nil {
		v := int(*usageLimit)
		c.UsageLimit = &v
	}

	if err := unmarshalDetails(&c, details); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

// marshalDetails serializes the detail block matching the coupon type.
func marshalDetails(c *coupon.Coupon) ([]byte, error) {
	switch c.Type {
	case coupon.TypeCartWise:
		if c.CartWise == nil {
			return nil, errors.Errorf("coupon %q: missing cart-wise details", c.Code)
		}
		return json.Marshal(c.CartWise)
	case coupon.TypeProductWise:
		if c.ProductWise == nil {
			return nil, errors.Errorf("coupon %q: missing product-wise details", c.Code)
		}
		return json.Marshal(c.ProductWise)
	case coupon.TypeBxGy:
		if c.BxGy == nil {
			return nil, errors.Errorf("coupon %q: missing bxgy details", c.Code)
		}
		return json.Marshal(c.BxGy)
	default:
		return nil, errors.Errorf("coupon %q: unknown type %q", c.Code, c.Type)
	}
}

// unmarshalDetails populates the detail block matching the coupon type.
func unmarshalDetails(c *coupon.Coupon, raw []byte) error {
	switch c.Type {
	case coupon.TypeCartWise:
		c.CartWise = new(coupon.CartWiseDetails)
		return json.Unmarshal(raw, c.CartWise)
	case coupon.TypeProductWise:
		c.ProductWise = new(coupon.ProductWiseDetails)
		return json.Unmarshal(raw, c.ProductWise)
	case coupon.TypeBxGy:
		c.BxGy = new(coupon.BxGyDetails)
		return json.Unmarshal(raw, c.BxGy)
	default:
		return errors.Errorf("coupon %q: unknown type %q", c.Code, c.Type)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
