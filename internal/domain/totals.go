package domain

import "github.com/shopspring/decimal"

// Totals returns the monetary total and the item count of the given lines.
// Nothing is cached: callers rebuild lines from live prices on every read.
func Totals(items []LineItemView) (decimal.Decimal, int64) {
	total := decimal.Zero
	var count int64
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
		count += it.Quantity
	}
	return total, count
}
