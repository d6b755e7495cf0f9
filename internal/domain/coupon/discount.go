package coupon

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// CalculateDiscount returns the discount amount the coupon yields for the
// cart. It is pure and assumes applicability has already been confirmed via
// IsApplicable; an unrecognized type yields zero.
func CalculateDiscount(c *Coupon, cart Cart, subtotal decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case TypeCartWise:
		return cartWiseDiscount(c, subtotal)
	case TypeProductWise:
		return productWiseDiscount(c, cart)
	case TypeBxGy:
		return bxgyDiscount(c.BxGy, cart)
	default:
		return decimal.Zero
	}
}

// cartWiseDiscount computes the cart-wide amount: percentage of the subtotal
// or the fixed value, clamped first to the coupon's maximum discount cap and
// then to the subtotal itself.
func cartWiseDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	d := c.CartWise

	amount := d.Discount
	if d.DiscountType == DiscountPercentage {
		amount = subtotal.Mul(d.Discount).Div(hundred)
	}
	amount = capDiscount(amount, c.MaximumDiscountAmount)

	return decimal.Min(amount, subtotal)
}

// productWiseDiscount accumulates per-item discounts across matching line
// items, clamped to the coupon's maximum discount cap. Unlike cart-wise there
// is no clamp to the item totals: a fixed per-unit discount can exceed the
// unit price.
func productWiseDiscount(c *Coupon, cart Cart) decimal.Decimal {
	d := c.ProductWise

	total := decimal.Zero
	for _, item := range cart.Items {
		if !containsProduct(d.ProductIDs, item.ProductID) {
			continue
		}
		total = total.Add(productItemDiscount(d, item))
	}

	return capDiscount(total, c.MaximumDiscountAmount)
}

// productItemDiscount returns one line item's discount: a percentage of the
// line total, or the fixed value multiplied by the quantity.
func productItemDiscount(d *ProductWiseDetails, item CartItem) decimal.Decimal {
	qty := decimal.NewFromInt(int64(item.Quantity))
	if d.DiscountType == DiscountPercentage {
		return item.Price.Mul(qty).Mul(d.Discount).Div(hundred)
	}
	return d.Discount.Mul(qty)
}

// bxgyDiscount values the free units granted by the offer: for each get
// product present in the cart, min(rule quantity * applications, cart
// quantity) units at the cart item's unit price. Get products absent from the
// cart contribute nothing.
func bxgyDiscount(d *BxGyDetails, cart Cart) decimal.Decimal {
	apps := applications(d, cart)

	total := decimal.Zero
	for _, gp := range d.GetProducts {
		item, ok := findItem(cart, gp.ProductID)
		if !ok {
			continue
		}
		freeQty := min(gp.Quantity*apps, item.Quantity)
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(freeQty))))
	}
	return total
}

// applications returns how many times a BxGy offer multiplies:
// floor(qualifying buy quantity / threshold), capped by the repetition limit.
func applications(d *BxGyDetails, cart Cart) int {
	if d.BuyQuantityThreshold <= 0 {
		return 0
	}
	return min(buyQuantity(cart, d.BuyProducts)/d.BuyQuantityThreshold, d.RepetitionLimit)
}

func containsProduct(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// capDiscount clamps amount to the optional maximum discount cap.
func capDiscount(amount decimal.Decimal, cap *decimal.Decimal) decimal.Decimal {
	if cap != nil && amount.GreaterThan(*cap) {
		return *cap
	}
	return amount
}
