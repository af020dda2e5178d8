package extract

import "fmt"

// DateStrategy chooses the document date among all candidates, which are
// ordered by position. It returns false when there is nothing to choose.
type DateStrategy func(candidates []DateCandidate) (DateCandidate, bool)

// LatestMatch picks the candidate appearing last in the text. Documents
// usually restate the authoritative date near totals or signatures.
func LatestMatch(candidates []DateCandidate) (DateCandidate, bool) {
	if len(candidates) == 0 {
		return DateCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Position > best.Position {
			best = c
		}
	}
	return best, true
}

// FirstMatch picks the candidate appearing first in the text.
func FirstMatch(candidates []DateCandidate) (DateCandidate, bool) {
	if len(candidates) == 0 {
		return DateCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Position < best.Position {
			best = c
		}
	}
	return best, true
}

// ParseDateStrategy maps a configuration name to a strategy.
func ParseDateStrategy(name string) (DateStrategy, error) {
	switch name {
	case "", "latest":
		return LatestMatch, nil
	case "first":
		return FirstMatch, nil
	default:
		return nil, fmt.Errorf("unknown date strategy %q (want latest or first)", name)
	}
}
