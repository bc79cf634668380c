package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Date is a calendar date that may be absent. Valid is false when the
	// source cell could not be parsed.
	Date struct {
		time.Time
		Valid bool
	}

	// Transaction is one statement row after normalization.
	Transaction struct {
		Line        int // 1-based line in the source file
		Date        Date
		Description string
		RawAmount   string
		Amount      decimal.Decimal
		Category    string
	}
)

// NewDate creates a valid Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// ParseDate parses raw with a single layout. Unparsable input yields an
// invalid Date rather than an error.
func ParseDate(raw, layout string) Date {
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}
	}
	return Date{Time: t, Valid: true}
}

// String formats the date as YYYY-MM-DD, or empty when invalid.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Format("2006-01-02")
}

// IsSpending reports whether the transaction counts toward spend totals.
// Refunds and auto-debit credits appear as zero or negative amounts.
func (t Transaction) IsSpending() bool {
	return t.Amount.IsPositive()
}

// MarshalJSON encodes an invalid date as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}
