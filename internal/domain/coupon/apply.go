package coupon

import "github.com/shopspring/decimal"

// ApplyDiscount materializes the coupon's discount onto the cart, producing a
// fresh per-item projection. The input cart is not modified. Applicability is
// assumed to have been confirmed by the caller; an unrecognized type leaves
// the projection undiscounted.
func ApplyDiscount(c *Coupon, cart Cart) DiscountedCart {
	subtotal := cart.Subtotal()

	out := DiscountedCart{
		Items:         make([]DiscountedItem, len(cart.Items)),
		TotalPrice:    subtotal,
		TotalDiscount: decimal.Zero,
		AppliedCoupon: AppliedCoupon{ID: c.ID, Code: c.Code, Type: c.Type},
	}
	for i, item := range cart.Items {
		out.Items[i] = DiscountedItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			Price:           item.Price,
			TotalDiscount:   decimal.Zero,
			DiscountedPrice: item.Price,
		}
	}

	switch c.Type {
	case TypeCartWise:
		applyCartWise(c, &out)
	case TypeProductWise:
		applyProductWise(c.ProductWise, &out)
	case TypeBxGy:
		applyBxGy(c.BxGy, cart, &out)
	}

	out.FinalPrice = out.TotalPrice.Sub(out.TotalDiscount)
	if out.FinalPrice.IsNegative() {
		out.FinalPrice = decimal.Zero
	}
	return out
}

// applyCartWise distributes the cart-wide discount proportionally across every
// line item, matched or not. A zero subtotal leaves the ratio at zero: the
// discount is necessarily zero too, and dividing by the subtotal would be
// undefined.
func applyCartWise(c *Coupon, out *DiscountedCart) {
	discount := cartWiseDiscount(c, out.TotalPrice)
	out.TotalDiscount = discount

	ratio := decimal.Zero
	if out.TotalPrice.IsPositive() {
		ratio = discount.Div(out.TotalPrice)
	}

	for i := range out.Items {
		item := &out.Items[i]
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		item.TotalDiscount = lineTotal.Mul(ratio)
		item.DiscountedPrice = item.Price.Mul(one.Sub(ratio))
	}
}

// applyProductWise discounts each matching line item on its own; non-matching
// items keep their full price. The per-item figures are not clamped by the
// coupon's maximum discount cap, mirroring the calculation asymmetry.
func applyProductWise(d *ProductWiseDetails, out *DiscountedCart) {
	total := decimal.Zero
	for i := range out.Items {
		item := &out.Items[i]
		if !containsProduct(d.ProductIDs, item.ProductID) {
			continue
		}

		item.TotalDiscount = productItemDiscount(d, CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
		if d.DiscountType == DiscountPercentage {
			item.DiscountedPrice = item.Price.Mul(one.Sub(d.Discount.Div(hundred)))
		} else {
			item.DiscountedPrice = item.Price.Sub(d.Discount)
		}
		total = total.Add(item.TotalDiscount)
	}
	out.TotalDiscount = total
}

// applyBxGy marks the free quantities on the get-product lines. Items not
// named in the get list are untouched.
func applyBxGy(d *BxGyDetails, cart Cart, out *DiscountedCart) {
	apps := applications(d, cart)

	total := decimal.Zero
	for _, gp := range d.GetProducts {
		idx := indexOfItem(out.Items, gp.ProductID)
		if idx < 0 {
			continue
		}

		item := &out.Items[idx]
		freeQty := min(gp.Quantity*apps, item.Quantity)
		freeValue := item.Price.Mul(decimal.NewFromInt(int64(freeQty)))

		item.FreeQuantity = freeQty
		item.TotalDiscount = freeValue
		total = total.Add(freeValue)
	}
	out.TotalDiscount = total
}
