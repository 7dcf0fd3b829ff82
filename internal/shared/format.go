package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.Indonesian)

// FormatQty renders a quantity for user-facing messages using Indonesian separators.
func FormatQty(q decimal.Decimal) string {
	f, _ := q.Float64()
	places := 0
	if exp := q.Exponent(); exp < 0 {
		places = int(-exp)
	}
	return printer.Sprint(number.Decimal(f, number.Scale(places)))
}

// FormatAmount renders a currency amount with two decimals.
func FormatAmount(a decimal.Decimal) string {
	f, _ := a.Round(2).Float64()
	return printer.Sprint(number.Decimal(f, number.Scale(2)))
}
