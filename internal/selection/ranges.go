package selection

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned when a range token is malformed.
var ErrInvalidRange = errors.New("invalid range")

// Set is a set of positive integers kept as sorted, merged, inclusive intervals.
// The zero value is the empty set.
type Set struct {
	spans []span
}

type span struct{ lo, hi int }

// NewSet builds a set from individual values. Non-positive values are ignored.
func NewSet(values ...int) Set {
	spans := make([]span, 0, len(values))
	for _, v := range values {
		if v > 0 {
			spans = append(spans, span{v, v})
		}
	}
	return Set{spans: normalize(spans)}
}

// ParseRanges parses comma separated tokens of the form N or A-B (1 <= A <= B).
// Whitespace around tokens is ignored and empty tokens are skipped, so an
// empty input gives an empty set without error.
func ParseRanges(input string) (Set, error) {
	var spans []span
	for _, tok := range strings.Split(input, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lo, hi, err := parseToken(tok)
		if err != nil {
			return Set{}, err
		}
		spans = append(spans, span{lo, hi})
	}
	return Set{spans: normalize(spans)}, nil
}

func parseToken(tok string) (int, int, error) {
	start, end, isRange := strings.Cut(tok, "-")
	if !isRange {
		n, err := parsePositive(tok)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q is not a positive integer", ErrInvalidRange, tok)
		}
		return n, n, nil
	}
	lo, errLo := parsePositive(strings.TrimSpace(start))
	hi, errHi := parsePositive(strings.TrimSpace(end))
	if errLo != nil || errHi != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a start-end pair of positive integers", ErrInvalidRange, tok)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: %q has start %d greater than end %d", ErrInvalidRange, tok, lo, hi)
	}
	return lo, hi, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

// normalize sorts spans and merges overlapping or adjacent ones.
func normalize(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.lo-1 <= last.hi {
			if s.hi > last.hi {
				last.hi = s.hi
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Contains reports whether n is in the set.
func (s Set) Contains(n int) bool {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].hi >= n })
	return i < len(s.spans) && s.spans[i].lo <= n
}

// Len returns the number of integers in the set.
func (s Set) Len() int {
	total := 0
	for _, sp := range s.spans {
		total += sp.hi - sp.lo + 1
	}
	return total
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return len(s.spans) == 0 }

// Values expands the set in ascending order. Callers holding very large
// ranges should prefer Contains.
func (s Set) Values() []int {
	out := make([]int, 0, s.Len())
	for _, sp := range s.spans {
		for v := sp.lo; v <= sp.hi; v++ {
			out = append(out, v)
		}
	}
	return out
}

// String renders the set in range syntax, e.g. "1,3-5,7".
func (s Set) String() string {
	parts := make([]string, 0, len(s.spans))
	for _, sp := range s.spans {
		if sp.lo == sp.hi {
			parts = append(parts, strconv.Itoa(sp.lo))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", sp.lo, sp.hi))
		}
	}
	return strings.Join(parts, ",")
}
