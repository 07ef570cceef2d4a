package landing

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders minor units for display, e.g. 299700 aud -> "$2,997 AUD".
// Whole amounts drop the fractional part. Unknown codes fall back to the raw
// amount and the upper-cased code.
func FormatPrice(amount int64, code string) string {
	iso := strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(iso)
	if err != nil {
		return printer.Sprintf("%d %s", amount, iso)
	}

	scale, _ := currency.Standard.Rounding(unit)
	divisor := int64(1)
	for i := 0; i < scale; i++ {
		divisor *= 10
	}

	var value string
	if amount%divisor == 0 {
		value = printer.Sprint(number.Decimal(amount / divisor))
	} else {
		value = printer.Sprint(number.Decimal(float64(amount)/float64(divisor), number.Scale(scale)))
	}

	symbol := printer.Sprint(currency.NarrowSymbol(unit))
	if symbol == unit.String() {
		symbol = ""
	}
	return symbol + value + " " + unit.String()
}
