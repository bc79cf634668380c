package core

import "github.com/shopspring/decimal"

// CategoryTotal is the summed spend of one category.
type CategoryTotal struct {
	Label  string
	Amount decimal.Decimal
	Count  int
}

// Aggregation is the result of one pipeline run. Categories are sorted by
// descending amount; ties keep first-appearance order.
type Aggregation struct {
	Categories []CategoryTotal
	Total      decimal.Decimal
	RowCount   int // retained rows
	Excluded   int // rows dropped for a non-positive amount
}

// IsEmpty reports whether no row contributed spend.
func (a Aggregation) IsEmpty() bool {
	return a.RowCount == 0
}

// RoundedTotal returns the grand total rounded to cents.
func (a Aggregation) RoundedTotal() decimal.Decimal {
	return Round2(a.Total)
}

// Summary maps each label to its total rounded to cents.
func (a Aggregation) Summary() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(a.Categories))
	for _, c := range a.Categories {
		out[c.Label] = Round2(c.Amount)
	}
	return out
}
