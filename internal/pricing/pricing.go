// Package pricing computes effective prices and order totals. All
// arithmetic uses decimals so cent amounts round-trip exactly.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// EffectivePrice applies a percentage discount to a base price, rounded
// to 2 decimal places. The result is persisted into NUMERIC(10,2)
// columns, so rounding here keeps stored snapshots identical to the
// values totals are computed from. A zero discount leaves the base price
// untouched.
func EffectivePrice(base, discountPct decimal.Decimal) decimal.Decimal {
	if discountPct.IsZero() {
		return base
	}
	return base.Mul(hundred.Sub(discountPct)).Div(hundred).Round(2)
}

// LineTotal is the effective unit price times the quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// OrderTotal sums line totals, rounded to 2 decimal places.
func OrderTotal(lineTotals []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lt := range lineTotals {
		total = total.Add(lt)
	}
	return total.Round(2)
}

// ReviewAggregate recomputes the denormalized review stats from the full
// rating set: the 2-decimal mean and the count. Always derived from
// scratch, never incrementally.
func ReviewAggregate(ratings []int) (scoring decimal.Decimal, totalRatings int) {
	totalRatings = len(ratings)
	if totalRatings == 0 {
		return decimal.Zero, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	scoring = decimal.NewFromInt(int64(sum)).
		Div(decimal.NewFromInt(int64(totalRatings))).
		Round(2)
	return scoring, totalRatings
}
