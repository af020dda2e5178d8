package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/paperflow/internal/textnorm"
)

// AmountCandidate is a monetary amount found in the text.
type AmountCandidate struct {
	Raw        string
	Currency   string
	Cents      int64
	Position   int
	End        int
	AfterTotal bool
}

// Value returns the normalized "1234.50 EUR" form.
func (a AmountCandidate) Value() string {
	sign := ""
	cents := a.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, a.Currency)
}

const currencyAlternation = `euros?|€|EUR|\$|USD|£|GBP|CHF`

var amountPattern = regexp.MustCompile(
	`(?i)(?:(` + currencyAlternation + `)[ \x{00A0}]?)?` +
		`(\d{1,3}(?:[ \x{00A0}\x{202F}.,']\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)` +
		`(?:[ \x{00A0}]?(` + currencyAlternation + `))?`)

// totalKeywords introduce the amount a document is about. They are
// compared against folded text.
var totalKeywords = []string{"net a payer", "montant", "total", "ttc", "a payer", "amount due", "solde"}

// totalWindow is how far before an amount a total keyword may appear.
const totalWindow = 40

// maxWhole keeps whole*100 + cents within int64.
const maxWhole = (math.MaxInt64 - 99) / 100

// FindAmounts returns every amount carrying a currency marker or decimal
// part. Ranges in exclude (dates, identifiers) are skipped.
func FindAmounts(text, defaultCurrency string, exclude spans) []AmountCandidate {
	var found []AmountCandidate
	for _, idx := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		numStart, numEnd := idx[4], idx[5]
		if exclude.overlaps(numStart, numEnd) {
			continue
		}
		if !standalone(text, idx[0], idx[1], idx[6] >= 0) {
			continue
		}

		m := submatches(text, idx)
		currency := normalizeCurrency(m[1])
		if currency == "" {
			currency = normalizeCurrency(m[3])
		}
		number := m[2]
		if currency == "" && !hasDecimals(number) {
			continue
		}
		if currency == "" {
			currency = strings.ToUpper(defaultCurrency)
		}

		cents, ok := parseCents(number)
		if !ok {
			continue
		}

		found = append(found, AmountCandidate{
			Raw:        strings.TrimSpace(m[0]),
			Currency:   currency,
			Cents:      cents,
			Position:   idx[0],
			End:        idx[1],
			AfterTotal: followsTotalKeyword(text, idx[0]),
		})
	}
	return found
}

// SelectAmount prefers the largest amount introduced by a total keyword,
// then the largest amount overall.
func SelectAmount(candidates []AmountCandidate) (AmountCandidate, string, bool) {
	var best *AmountCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.AfterTotal && (best == nil || c.Cents > best.Cents) {
			best = c
		}
	}
	if best != nil {
		return *best, "total-keyword", true
	}
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Cents > best.Cents {
			best = c
		}
	}
	if best == nil {
		return AmountCandidate{}, "", false
	}
	return *best, "largest", true
}

func normalizeCurrency(s string) string {
	switch strings.ToLower(s) {
	case "€", "eur", "euro", "euros":
		return "EUR"
	case "$", "usd":
		return "USD"
	case "£", "gbp":
		return "GBP"
	case "chf":
		return "CHF"
	default:
		return ""
	}
}

// standalone rejects numbers glued to letters or other digits, such as
// invoice references ("F2024"), and percentages.
func standalone(text string, start, end int, hasSuffix bool) bool {
	if start > 0 && isASCIIAlnum(text[start-1]) {
		return false
	}
	if hasSuffix {
		return true
	}
	if end < len(text) && isASCIIAlnum(text[end]) {
		return false
	}
	return !strings.HasPrefix(strings.TrimLeft(text[end:], " \u00a0"), "%")
}

func isASCIIAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func hasDecimals(number string) bool {
	i := strings.LastIndexAny(number, ".,")
	if i < 0 {
		return false
	}
	digits := len(number) - i - 1
	return digits == 1 || digits == 2
}

// parseCents converts a localized number to cents. The last '.' or ','
// is the decimal separator when one or two digits follow it; every other
// separator groups thousands.
func parseCents(number string) (int64, bool) {
	intPart, fracPart := number, ""
	if hasDecimals(number) {
		i := strings.LastIndexAny(number, ".,")
		intPart, fracPart = number[:i], number[i+1:]
	}

	var digits strings.Builder
	for _, r := range intPart {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}

	whole, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || whole > maxWhole {
		return 0, false
	}
	var frac int64
	switch len(fracPart) {
	case 1:
		frac = int64(fracPart[0]-'0') * 10
	case 2:
		frac = int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
	}
	return whole*100 + frac, true
}

func followsTotalKeyword(text string, pos int) bool {
	start := pos - totalWindow
	if start < 0 {
		start = 0
	}
	for start < pos && !utf8.RuneStart(text[start]) {
		start++
	}
	// Stay on the amount's own line.
	window := text[start:pos]
	if nl := strings.LastIndexAny(window, "\n\f"); nl >= 0 {
		window = window[nl+1:]
	}
	folded := textnorm.Fold(window)
	for _, kw := range totalKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
