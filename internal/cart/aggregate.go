package cart

// Pure computation over cart snapshots. No I/O here; identical input always
// yields identical output.

// UnitPriceCents resolves the effective unit price of a line item. The
// resolution order is fixed: variant price wins, then color, then size,
// then the product base price.
func UnitPriceCents(it LineItem) int {
	if it.VariantPriceCents != nil {
		return *it.VariantPriceCents
	}
	if it.ColorPriceCents != nil {
		return *it.ColorPriceCents
	}
	if it.SizePriceCents != nil {
		return *it.SizePriceCents
	}
	return it.BasePriceCents
}

// StoreTotalCents sums unit price times quantity over one seller's items.
func StoreTotalCents(sc StoreCart) int {
	total := 0
	for _, it := range sc.Items {
		total += UnitPriceCents(it) * it.Quantity
	}
	return total
}

// CartTotalCents sums StoreTotalCents over all stores.
func CartTotalCents(c Cart) int {
	total := 0
	for _, sc := range c.Stores {
		total += StoreTotalCents(sc)
	}
	return total
}

// TotalItemCount sums quantities across all items in all stores.
func TotalItemCount(c Cart) int {
	n := 0
	for _, sc := range c.Stores {
		for _, it := range sc.Items {
			n += it.Quantity
		}
	}
	return n
}
