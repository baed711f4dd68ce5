package dto

import "github.com/shopspring/decimal"

// LineTotal is price × quantity in exact decimal arithmetic.
func (i OrderItem) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsSubtotal sums the line totals of items, rounded to cents.
func ItemsSubtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum.Round(2)
}

// Reconciliation compares the server-provided total with the item sum.
type Reconciliation struct {
	Reported   decimal.Decimal
	Computed   decimal.Decimal
	Difference decimal.Decimal
}

// Mismatch reports whether the totals disagree at cent precision.
func (r Reconciliation) Mismatch() bool {
	return !r.Difference.IsZero()
}

// Reconcile cross-checks Total against the items. The order itself is not modified.
func (o Order) Reconcile() Reconciliation {
	reported := decimal.NewFromFloat(o.Total).Round(2)
	computed := ItemsSubtotal(o.Items)
	return Reconciliation{
		Reported:   reported,
		Computed:   computed,
		Difference: reported.Sub(computed),
	}
}
