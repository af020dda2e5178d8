package extract

import (
	"regexp"
	"sort"
	"strings"
)

// IdentifierCandidate is a validated business identifier.
type IdentifierCandidate struct {
	Raw      string
	Value    string // digits only
	Kind     string // "siret" or "siren"
	Position int
	End      int
}

var (
	siretPattern = regexp.MustCompile(`\b\d{3}[ \x{00A0}]?\d{3}[ \x{00A0}]?\d{3}[ \x{00A0}]?\d{5}\b`)
	sirenPattern = regexp.MustCompile(`\b\d{3}[ \x{00A0}]?\d{3}[ \x{00A0}]?\d{3}\b`)
)

// laPosteSIREN has SIRET numbers validated by digit sum instead of Luhn.
const laPosteSIREN = "356000000"

// FindIdentifiers returns SIRET (14 digits) and SIREN (9 digits) numbers that
// pass their checksum, in text order. A SIREN inside a found SIRET is not
// reported separately. Invalid candidates are dropped, never corrected.
func FindIdentifiers(text string) []IdentifierCandidate {
	var found []IdentifierCandidate
	var taken spans

	for _, loc := range siretPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		digits := onlyDigits(raw)
		if !ValidSIRET(digits) {
			continue
		}
		taken.add(loc[0], loc[1])
		found = append(found, IdentifierCandidate{Raw: raw, Value: digits, Kind: "siret", Position: loc[0], End: loc[1]})
	}

	for _, loc := range sirenPattern.FindAllStringIndex(text, -1) {
		if taken.overlaps(loc[0], loc[1]) {
			continue
		}
		raw := text[loc[0]:loc[1]]
		digits := onlyDigits(raw)
		if !ValidSIREN(digits) {
			continue
		}
		found = append(found, IdentifierCandidate{Raw: raw, Value: digits, Kind: "siren", Position: loc[0], End: loc[1]})
	}

	sortByPosition(found)
	return found
}

// ValidSIREN checks a 9-digit SIREN with the Luhn algorithm.
func ValidSIREN(digits string) bool {
	return len(digits) == 9 && luhn(digits)
}

// ValidSIRET checks a 14-digit SIRET with Luhn. Establishments of La Poste
// may instead satisfy a digit-sum rule.
func ValidSIRET(digits string) bool {
	if len(digits) != 14 {
		return false
	}
	if luhn(digits) {
		return true
	}
	if !strings.HasPrefix(digits, laPosteSIREN) {
		return false
	}
	sum := 0
	for _, r := range digits {
		sum += int(r - '0')
	}
	return sum%5 == 0
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortByPosition(c []IdentifierCandidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].Position < c[j].Position })
}
