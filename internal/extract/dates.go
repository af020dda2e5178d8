package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/paperflow/internal/textnorm"
)

// DateCandidate is a calendar date found in the text.
type DateCandidate struct {
	Date     time.Time
	Raw      string
	Method   string
	Position int
	End      int
}

// ISO returns the candidate as YYYY-MM-DD.
func (c DateCandidate) ISO() string {
	return c.Date.Format(time.DateOnly)
}

var monthNames = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "january": time.January, "jan": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February, "february": time.February, "feb": time.February,
	"mars": time.March, "march": time.March, "mar": time.March,
	"avril": time.April, "avr": time.April, "april": time.April, "apr": time.April,
	"mai": time.May, "may": time.May,
	"juin": time.June, "june": time.June, "jun": time.June,
	"juillet": time.July, "juil": time.July, "july": time.July, "jul": time.July,
	"aout": time.August, "august": time.August, "aug": time.August,
	"septembre": time.September, "september": time.September, "sept": time.September, "sep": time.September,
	"octobre": time.October, "october": time.October, "oct": time.October,
	"novembre": time.November, "november": time.November, "nov": time.November,
	"decembre": time.December, "december": time.December, "dec": time.December,
}

// monthAlternation lists month spellings longest first, with accented
// variants, for use inside a case-insensitive regular expression.
func monthAlternation() string {
	accented := map[string]string{
		"fevrier": "février", "fevr": "févr", "fev": "fév",
		"aout": "août", "decembre": "décembre", "dec": "déc",
	}
	names := make([]string, 0, len(monthNames)+len(accented))
	for name := range monthNames {
		names = append(names, name)
		if a, ok := accented[name]; ok {
			names = append(names, a)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return strings.Join(names, "|")
}

type datePattern struct {
	re     *regexp.Regexp
	parse  func(m []string) (year, month, day int, ok bool)
	method string
}

// datePatterns are tried in order; a later pattern never claims text
// already matched by an earlier one.
var datePatterns = func() []datePattern {
	months := monthAlternation()
	return []datePattern{
		{
			method: "iso",
			re:     regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
			parse: func(m []string) (int, int, int, bool) {
				return atoi(m[1]), atoi(m[2]), atoi(m[3]), true
			},
		},
		{
			method: "day-month-name",
			re:     regexp.MustCompile(`(?i)\b(\d{1,2})(?:er|st|nd|rd|th)?[ \t\x{00A0}]+(` + months + `)\.?,?[ \t\x{00A0}]+(\d{4})\b`),
			parse: func(m []string) (int, int, int, bool) {
				month, ok := monthNames[textnorm.Fold(m[2])]
				return atoi(m[3]), int(month), atoi(m[1]), ok
			},
		},
		{
			method: "month-name-day",
			re:     regexp.MustCompile(`(?i)\b(` + months + `)\.?[ \t\x{00A0}]+(\d{1,2})(?:st|nd|rd|th)?,?[ \t\x{00A0}]+(\d{4})\b`),
			parse: func(m []string) (int, int, int, bool) {
				month, ok := monthNames[textnorm.Fold(m[1])]
				return atoi(m[3]), int(month), atoi(m[2]), ok
			},
		},
		{
			method: "numeric",
			re:     regexp.MustCompile(`\b(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d{4}|\d{2})\b`),
			parse: func(m []string) (int, int, int, bool) {
				if m[2] != m[4] {
					return 0, 0, 0, false
				}
				year := atoi(m[5])
				if len(m[5]) == 2 {
					year += 2000
				}
				return year, atoi(m[3]), atoi(m[1]), true
			},
		},
	}
}()

// FindDates returns every valid calendar date in text, ordered by position.
// Impossible dates such as 31/02/2024 are discarded.
func FindDates(text string) []DateCandidate {
	var found []DateCandidate
	var taken spans

	for _, p := range datePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if taken.overlaps(start, end) {
				continue
			}
			m := submatches(text, idx)
			year, month, day, ok := p.parse(m)
			if !ok {
				continue
			}
			date, ok := makeDate(year, month, day)
			if !ok {
				continue
			}
			taken.add(start, end)
			found = append(found, DateCandidate{
				Date:     date,
				Raw:      m[0],
				Method:   p.method,
				Position: start,
				End:      end,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Position < found[j].Position })
	return found
}

// ParseISODate parses a normalized YYYY-MM-DD value.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO date %q: %w", s, err)
	}
	return t, nil
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2199 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func submatches(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
