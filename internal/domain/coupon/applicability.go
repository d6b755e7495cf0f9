package coupon

import "github.com/shopspring/decimal"

// IsApplicable reports whether the coupon's rules are satisfiable by the cart.
// The cart subtotal is passed in so callers evaluating many coupons compute it
// once. A subtotal below the coupon's minimum order amount short-circuits the
// type-specific checks; an unrecognized type is never applicable.
func IsApplicable(c *Coupon, cart Cart, subtotal decimal.Decimal) bool {
	if subtotal.LessThan(c.MinimumOrderAmount) {
		return false
	}

	switch c.Type {
	case TypeCartWise:
		return c.CartWise != nil && subtotal.GreaterThanOrEqual(c.CartWise.Threshold)
	case TypeProductWise:
		return c.ProductWise != nil && containsAnyProduct(cart, c.ProductWise.ProductIDs)
	case TypeBxGy:
		return c.BxGy != nil && buyQuantity(cart, c.BxGy.BuyProducts) >= c.BxGy.BuyQuantityThreshold
	default:
		return false
	}
}

// containsAnyProduct reports whether any cart item's product id is in ids.
func containsAnyProduct(cart Cart, ids []int64) bool {
	for _, item := range cart.Items {
		for _, id := range ids {
			if item.ProductID == id {
				return true
			}
		}
	}
	return false
}

// buyQuantity sums the cart quantities of items named in the buy list. The
// matched cart quantities are counted, not the rule's own per-product counts.
func buyQuantity(cart Cart, buy []ProductQuantity) int {
	total := 0
	for _, bp := range buy {
		if item, ok := findItem(cart, bp.ProductID); ok {
			total += item.Quantity
		}
	}
	return total
}

// findItem returns the first cart item with the given product id.
func findItem(cart Cart, productID int64) (CartItem, bool) {
	for _, item := range cart.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// indexOfItem returns the index of the first cart line with the given product
// id, or -1 when the product is not in the cart.
func indexOfItem(items []DiscountedItem, productID int64) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
