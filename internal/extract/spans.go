package extract

type span struct{ start, end int }

// spans records byte ranges already claimed by a match.
type spans []span

func (s *spans) add(start, end int) {
	*s = append(*s, span{start: start, end: end})
}

func (s spans) overlaps(start, end int) bool {
	for _, sp := range s {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}
