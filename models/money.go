package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ZeroMoney is the stored form of an unset monetary field
const ZeroMoney = "0.00"

// ParseMoney reads a monetary string in any of the formats clients send:
// "1234.56", "1.234,56", "1,234.56", "R$ 1.234,56", "12,5".
// Blank or unreadable input yields zero and ok=false.
func ParseMoney(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// whichever separator comes last is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// FormatMoneyBR renders a value the way the shop displays it: "1234,56"
func FormatMoneyBR(value decimal.Decimal) string {
	return strings.Replace(value.StringFixed(2), ".", ",", 1)
}

// SumMoney adds monetary strings, treating unreadable ones as zero
func SumMoney(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		if amount, ok := ParseMoney(v); ok {
			total = total.Add(amount)
		}
	}
	return total
}
