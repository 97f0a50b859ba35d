package pdfdoc

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	onesWords = []string{"", "ONE", "TWO", "THREE", "FOUR", "FIVE", "SIX", "SEVEN", "EIGHT", "NINE", "TEN",
		"ELEVEN", "TWELVE", "THIRTEEN", "FOURTEEN", "FIFTEEN", "SIXTEEN", "SEVENTEEN", "EIGHTEEN", "NINETEEN"}
	tensWords = []string{"", "", "TWENTY", "THIRTY", "FORTY", "FIFTY", "SIXTY", "SEVENTY", "EIGHTY", "NINETY"}
)

// NumberToWords spells n in the Indian system (thousand, lakh, crore).
func NumberToWords(n int64) string {
	if n == 0 {
		return "ZERO"
	}
	if n < 0 {
		return "MINUS " + NumberToWords(-n)
	}
	var parts []string
	appendRest := func(rest int64) {
		if rest != 0 {
			parts = append(parts, NumberToWords(rest))
		}
	}
	switch {
	case n < 20:
		return onesWords[n]
	case n < 100:
		parts = append(parts, tensWords[n/10])
		if n%10 != 0 {
			parts = append(parts, onesWords[n%10])
		}
	case n < 1000:
		parts = append(parts, onesWords[n/100], "HUNDRED")
		appendRest(n % 100)
	case n < 100000:
		parts = append(parts, NumberToWords(n/1000), "THOUSAND")
		appendRest(n % 1000)
	case n < 10000000:
		parts = append(parts, NumberToWords(n/100000), "LAKH")
		appendRest(n % 100000)
	default:
		parts = append(parts, NumberToWords(n/10000000), "CRORE")
		appendRest(n % 10000000)
	}
	return strings.Join(parts, " ")
}

// AmountInWords renders "<RUPEES> RUPEES [AND <PAISE> PAISE] ONLY".
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Round(2)
	rupees := amount.IntPart()
	paise := amount.Sub(decimal.NewFromInt(rupees)).Shift(2).Abs().IntPart()

	words := NumberToWords(rupees) + " RUPEES"
	if paise > 0 {
		words += " AND " + NumberToWords(paise) + " PAISE"
	}
	return words + " ONLY"
}

// FormatAmount groups thousands and keeps two decimals: 123456.5 -> "123,456.50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
