// Package selection implements the image selection language used to pick
// which embedded images of a paper are kept: "all", "none", "G:<ranges>"
// (document-wide discovery order) and "P:<ranges>" (page numbers).
package selection

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSelection is returned for selection specs outside the grammar.
var ErrInvalidSelection = errors.New("invalid image selection")

// Grammar is the accepted selection syntax, echoed back in parse errors.
const Grammar = "use 'all', 'none', 'G:<ranges>' for global image numbers or 'P:<ranges>' for page numbers, where ranges look like '1,3-5,7'"

// Criteria decides whether an image is eligible. A nil Criteria means no
// images are processed at all. The set of implementations is closed.
type Criteria interface {
	// Eligible reports whether the image with the given 1-based document-wide
	// discovery index, found on the given 1-based page, is selected.
	Eligible(globalIndex, page int) bool
	criteria()
}

// All selects every image.
type All struct{}

// Global selects images by their document-wide discovery index.
type Global struct{ Indices Set }

// Pages selects every image on the listed pages.
type Pages struct{ Pages Set }

func (All) Eligible(int, int) bool                { return true }
func (g Global) Eligible(globalIndex, _ int) bool { return g.Indices.Contains(globalIndex) }
func (p Pages) Eligible(_, page int) bool         { return p.Pages.Contains(page) }

func (All) criteria()    {}
func (Global) criteria() {}
func (Pages) criteria()  {}

// ParseOptional is Parse for an optional flag: nil means the flag was not
// given and yields no criteria.
func ParseOptional(spec *string) (Criteria, error) {
	if spec == nil {
		return nil, nil
	}
	return Parse(*spec)
}

// Parse turns a selection spec into criteria. The returned criteria is nil
// (with a nil error) for the "none" family of values.
func Parse(spec string) (Criteria, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	switch s {
	case "", "all", "true", "yes", "1":
		return All{}, nil
	case "none", "false", "no", "0":
		return nil, nil
	}

	switch {
	case strings.HasPrefix(s, "g:"):
		set, err := parseIndexed(spec, s[2:])
		if err != nil {
			return nil, err
		}
		return Global{Indices: set}, nil
	case strings.HasPrefix(s, "p:"):
		set, err := parseIndexed(spec, s[2:])
		if err != nil {
			return nil, err
		}
		return Pages{Pages: set}, nil
	}
	return nil, fmt.Errorf("%w %q: %s", ErrInvalidSelection, spec, Grammar)
}

func parseIndexed(spec, ranges string) (Set, error) {
	set, err := ParseRanges(ranges)
	if err != nil {
		return Set{}, fmt.Errorf("%w %q: %w", ErrInvalidSelection, spec, err)
	}
	if set.Empty() {
		return Set{}, fmt.Errorf("%w %q: no numbers given after the prefix; %s", ErrInvalidSelection, spec, Grammar)
	}
	return set, nil
}

// Describe renders criteria in canonical selection syntax. Parse(Describe(c)) gives
// back criteria equivalent to c.
func Describe(c Criteria) string {
	switch v := c.(type) {
	case nil:
		return "none"
	case All:
		return "all"
	case Global:
		return "g:" + v.Indices.String()
	case Pages:
		return "p:" + v.Pages.String()
	default:
		return fmt.Sprintf("%T", c)
	}
}
