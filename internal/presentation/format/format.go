// Package format renders order values for people: money, timestamps and
// enum labels.
package format

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	dateTimeLayout = "Jan 2, 2006 3:04 PM"
	dateLayout     = "Jan 2, 2006"
)

// Money renders an amount as dollars with two decimals, e.g. $12.99.
func Money(amount float64) string {
	return MoneyDecimal(decimal.NewFromFloat(amount))
}

// MoneyDecimal renders d as dollars with two decimals.
func MoneyDecimal(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// DateTime renders t in loc, or an empty string for the zero time.
func DateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateTimeLayout)
}

// Date renders the calendar date of t in loc.
func Date(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateLayout)
}

// OptionalDateTime renders t or dash when unset.
func OptionalDateTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return DateTime(*t, loc)
}

// Label turns an enum value such as "pickup" into "Pickup".
func Label[T ~string](v T) string {
	s := strings.ReplaceAll(string(v), "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
