package orders

import "github.com/shopspring/decimal"

// AmountForProducts sums the price of every requested product id,
// counting duplicates once per occurrence. Ids missing from the price
// index are skipped silently; a bad id never fails the whole add.
func AmountForProducts(prices map[int64]decimal.Decimal, productIDs []int64) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range productIDs {
		if p, ok := prices[id]; ok {
			sum = sum.Add(p)
		}
	}
	return sum
}

// AmountAfterRemoval subtracts the removed line prices from the
// running total. The amount invariant is "never negative", so the
// result is floored at zero rather than trusted blindly.
func AmountAfterRemoval(current decimal.Decimal, removed []decimal.Decimal) decimal.Decimal {
	out := current
	for _, p := range removed {
		out = out.Sub(p)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
