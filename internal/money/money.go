// Package money parses and formats Brazilian Real (BRL) amounts.
//
// Brazilian statements use "R$" as the currency symbol, "." as the
// thousands separator and "," as the decimal separator. This is not
// generic float parsing: "1.234,56" means 1234.56.
package money

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	symbolPattern = regexp.MustCompile(`[R$\s()]`)
	strayPattern  = regexp.MustCompile(`[^\d.,-]`)
)

// ParseAmount parses a BRL currency string. A leading "-" or an unclosed
// "(" prefix marks a negative value. Returns ok=false on unparseable
// input; it never panics on garbage.
//
//	ParseAmount("R$ 119,90")   -> 119.90
//	ParseAmount("R$ 1.234,56") -> 1234.56
//	ParseAmount("-703,69")     -> -703.69
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, false
	}

	negative := strings.HasPrefix(cleaned, "-") || strings.HasPrefix(cleaned, "(")

	// Strip symbol, parens and whitespace, then anything that is not a
	// digit, separator or sign.
	cleaned = symbolPattern.ReplaceAllString(cleaned, "")
	cleaned = strayPattern.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return 0, false
	}

	cleaned = strings.TrimLeft(cleaned, "-")

	// "1.234,56" -> "1234.56"
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// FormatAmount renders a value in BRL notation. withSymbol controls the
// "R$ " prefix.
//
//	FormatAmount(1234.56, true) -> "R$ 1.234,56"
//	FormatAmount(-703.69, false) -> "-703,69"
func FormatAmount(value float64, withSymbol bool) string {
	negative := value < 0
	if negative {
		value = -value
	}

	formatted := strconv.FormatFloat(value, 'f', 2, 64)

	// Group the integer part in threes with "." and switch the decimal
	// separator to ",".
	intPart, fracPart, _ := strings.Cut(formatted, ".")
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	formatted = grouped.String() + "," + fracPart

	if negative {
		formatted = "-" + formatted
	}
	if withSymbol {
		formatted = fmt.Sprintf("R$ %s", formatted)
	}
	return formatted
}
