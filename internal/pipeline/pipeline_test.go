package pipeline

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/core"
	"cardspend/internal/statement"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func table(rows ...statement.RawRow) statement.Table {
	for i := range rows {
		if rows[i].Line == 0 {
			rows[i].Line = 5 + i
		}
	}
	return statement.Table{Format: statement.FormatCSV, Rows: rows}
}

func row(desc, amount string) statement.RawRow {
	return statement.RawRow{Date: "2024-01-05", Description: desc, Amount: amount}
}

var testRules = core.MustCategorySet(
	core.CategoryRule{Label: "Dining", Keywords: []string{"星巴克", "SUBWAY"}},
	core.CategoryRule{Label: "Transport", Keywords: []string{"UBER"}},
	core.CategoryRule{Label: "Subscriptions", Keywords: []string{"GOOGL"}},
)

func TestRunAggregates(t *testing.T) {
	agg, err := Run(table(
		row("星巴克-信義店", "150"),
		row("UBER *TRIP", "320"),
		row("Subway Taipei", `"1,000"`),
		row("GOOGLE*YOUTUBE", "199"),
		row("unknown shop", "50.25"),
		row("UBER *EATS", "80"),
	), testRules, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 6, agg.RowCount)
	assert.Equal(t, 0, agg.Excluded)
	require.Len(t, agg.Categories, 4)

	labels := make([]string, len(agg.Categories))
	for i, c := range agg.Categories {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"Dining", "Transport", "Subscriptions", core.Uncategorized}, labels)
	assert.True(t, agg.Categories[0].Amount.Equal(dec("1150")))
	assert.Equal(t, 2, agg.Categories[0].Count)
	assert.True(t, agg.Categories[1].Amount.Equal(dec("400")))
	assert.True(t, agg.Total.Equal(dec("1799.25")))
}

func TestRunSumEqualsTotal(t *testing.T) {
	agg, err := Run(table(
		row("a", "0.1"), row("b", "0.2"), row("星巴克", "0.3"), row("uber", "1234.56"),
	), testRules, DefaultOptions())
	require.NoError(t, err)

	sum := decimal.Zero
	count := 0
	for _, c := range agg.Categories {
		sum = sum.Add(c.Amount)
		count += c.Count
	}
	assert.True(t, sum.Equal(agg.Total), "sum %s != total %s", sum, agg.Total)
	assert.Equal(t, agg.RowCount, count)
	assert.True(t, agg.Total.Equal(dec("1235.16")))
}

func TestRunFiltersNonPositive(t *testing.T) {
	agg, err := Run(table(
		row("UBER", "320"),
		row("自動扣繳", "-3000"),
		row("refund 星巴克", "-150"),
		row("zero", "0"),
		row("blank", ""),
	), testRules, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, agg.RowCount)
	assert.Equal(t, 4, agg.Excluded)
	require.Len(t, agg.Categories, 1)
	assert.Equal(t, "Transport", agg.Categories[0].Label)
	assert.True(t, agg.Total.Equal(dec("320")))
}

func TestRunOnlyRefundsIsEmpty(t *testing.T) {
	agg, err := Run(table(row("refund", "-10"), row("credit", "-20")), testRules, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, agg.IsEmpty())
	assert.Empty(t, agg.Categories)
	assert.True(t, agg.Total.IsZero())
	assert.Equal(t, 2, agg.Excluded)
}

func TestRunMalformedAmountAborts(t *testing.T) {
	agg, err := Run(table(
		row("UBER", "320"),
		statement.RawRow{Line: 42, Description: "bad", Amount: "12a"},
		row("星巴克", "150"),
	), testRules, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, core.KindMalformedAmount, core.KindOf(err))
	assert.Contains(t, err.Error(), "line 42")
	assert.True(t, agg.IsEmpty())
	assert.Empty(t, agg.Categories)
}

func TestRunRuleOrderMatters(t *testing.T) {
	ab := core.MustCategorySet(
		core.CategoryRule{Label: "A", Keywords: []string{"FOO"}},
		core.CategoryRule{Label: "B", Keywords: []string{"FOO", "BAR"}},
	)
	ba := core.MustCategorySet(
		core.CategoryRule{Label: "B", Keywords: []string{"FOO", "BAR"}},
		core.CategoryRule{Label: "A", Keywords: []string{"FOO"}},
	)
	in := table(row("foo bar", "10"))

	agg, err := Run(in, ab, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "A", agg.Categories[0].Label)

	agg, err = Run(in, ba, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "B", agg.Categories[0].Label)
}

func TestAggregateTiesKeepFirstAppearance(t *testing.T) {
	txs := []core.Transaction{
		{Category: "Z", Amount: dec("100")},
		{Category: "M", Amount: dec("100")},
		{Category: "A", Amount: dec("100")},
		{Category: "B", Amount: dec("250")},
	}
	agg := Aggregate(txs)

	labels := make([]string, len(agg.Categories))
	for i, c := range agg.Categories {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"B", "Z", "M", "A"}, labels)
}

func TestRunDeterministic(t *testing.T) {
	in := table(
		row("a", "5"), row("UBER", "5"), row("星巴克", "5"), row("GOOGL", "7"), row("b", "1"),
	)
	first, err := Run(in, testRules, DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Run(in, testRules, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTransactionsCarryNormalizedFields(t *testing.T) {
	txs, excluded, err := Transactions(table(
		statement.RawRow{Line: 7, Date: "2024-01-05", Description: "星巴克", Amount: "1,234.50"},
		statement.RawRow{Line: 8, Date: "05/01/2024", Description: "UBER", Amount: "10"},
	), testRules, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, excluded)
	require.Len(t, txs, 2)

	assert.Equal(t, 7, txs[0].Line)
	assert.Equal(t, "2024-01-05", txs[0].Date.String())
	assert.True(t, txs[0].Amount.Equal(dec("1234.5")))
	assert.Equal(t, "Dining", txs[0].Category)
	assert.False(t, txs[1].Date.Valid, "unparsable date stays invalid without failing the row")
}

func TestEndToEndDefaultStatement(t *testing.T) {
	input := "卡號\n期間\n備註\n消費日期,交易說明,臺幣金額\n2024-01-05,Starbucks Coffee,150\n2024-01-06,Refund,-150\n"
	reader, err := statement.NewReader(statement.DefaultOptions())
	require.NoError(t, err)
	tbl, err := reader.Read("statement.csv", strings.NewReader(input))
	require.NoError(t, err)

	agg, err := Run(tbl, testRules, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, agg.RowCount)
	assert.Equal(t, 1, agg.Excluded)
	assert.True(t, agg.Total.Equal(dec("150")))
	require.Len(t, agg.Categories, 1)
	assert.Equal(t, core.Uncategorized, agg.Categories[0].Label)
	summary := agg.Summary()
	require.Len(t, summary, 1)
	assert.True(t, summary[core.Uncategorized].Equal(dec("150")))
}
