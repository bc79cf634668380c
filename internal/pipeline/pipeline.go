// Package pipeline turns a validated statement table into per-category
// spending totals.
//
// A run normalizes every row, drops non-positive amounts (refunds and
// auto-debit credits), categorizes what is left and aggregates it. Runs are
// pure functions of their input and share nothing.
package pipeline

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"cardspend/internal/core"
	"cardspend/internal/statement"
)

// DefaultDateLayout is the single date format statement dates are parsed with.
const DefaultDateLayout = "2006-01-02"

// Options configures row normalization.
type Options struct {
	DateLayout string
}

// DefaultOptions returns the options matching statement.DefaultOptions.
func DefaultOptions() Options {
	return Options{DateLayout: DefaultDateLayout}
}

// Run normalizes, filters, categorizes and aggregates table.
//
// A row whose amount cannot be parsed aborts the whole run with a
// MalformedAmount error carrying the source line; no partial result is
// returned.
func Run(table statement.Table, rules core.CategorySet, opts Options) (core.Aggregation, error) {
	txs, excluded, err := Transactions(table, rules, opts)
	if err != nil {
		return core.Aggregation{}, err
	}
	agg := Aggregate(txs)
	agg.Excluded = excluded
	return agg, nil
}

// Transactions returns the categorized spending rows of table in source
// order, together with the number of rows dropped by the amount filter.
func Transactions(table statement.Table, rules core.CategorySet, opts Options) ([]core.Transaction, int, error) {
	layout := opts.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}

	txs := make([]core.Transaction, 0, len(table.Rows))
	excluded := 0
	for _, row := range table.Rows {
		tx, err := normalize(row, layout)
		if err != nil {
			return nil, 0, err
		}
		if !tx.IsSpending() {
			excluded++
			continue
		}
		tx.Category = core.Categorize(tx.Description, rules)
		txs = append(txs, tx)
	}
	return txs, excluded, nil
}

func normalize(row statement.RawRow, layout string) (core.Transaction, error) {
	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		var e *core.Error
		if errors.As(err, &e) {
			e.Line = row.Line
		}
		return core.Transaction{}, err
	}
	return core.Transaction{
		Line:        row.Line,
		Date:        core.ParseDate(row.Date, layout),
		Description: row.Description,
		RawAmount:   row.Amount,
		Amount:      amount,
	}, nil
}

// Aggregate groups categorized transactions by label and sums them.
// Categories are ordered by descending total; equal totals keep the order
// in which the category first appeared.
func Aggregate(txs []core.Transaction) core.Aggregation {
	index := make(map[string]int)
	var totals []core.CategoryTotal
	grand := decimal.Zero

	for _, tx := range txs {
		i, ok := index[tx.Category]
		if !ok {
			i = len(totals)
			index[tx.Category] = i
			totals = append(totals, core.CategoryTotal{Label: tx.Category, Amount: decimal.Zero})
		}
		totals[i].Amount = totals[i].Amount.Add(tx.Amount)
		totals[i].Count++
		grand = grand.Add(tx.Amount)
	}

	sort.SliceStable(totals, func(a, b int) bool {
		return totals[a].Amount.GreaterThan(totals[b].Amount)
	})

	return core.Aggregation{
		Categories: totals,
		Total:      grand,
		RowCount:   len(txs),
	}
}
