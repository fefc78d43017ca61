package version

import (
	"fmt"
	"strings"
)

// Range is a named predicate over a parsed Spec. A nil Spec (the nightly
// channel has no version) matches no range.
type Range struct {
	name    string
	matches func(*Spec) bool
}

// Name returns the human-readable description of the range.
func (r Range) Name() string {
	return r.name
}

// Matches reports whether the spec falls inside the range.
// A nil spec never matches.
func (r Range) Matches(s *Spec) bool {
	if s == nil {
		return false
	}
	return r.matches(s)
}

// MajorIs matches any version whose major segment equals major.
func MajorIs(major int) Range {
	return Range{
		name: fmt.Sprintf("%d.*", major),
		matches: func(s *Spec) bool {
			return s.Major() == major
		},
	}
}

// Between matches versions in [lo, hi] at major.minor granularity.
// Both boundaries are inclusive, so Between("2.0", "2.4") matches 2.4.1.
func Between(lo, hi string) Range {
	low := MustParse("range", lo)
	high := MustParse("range", hi)
	return Range{
		name: fmt.Sprintf("%s..%s", lo, hi),
		matches: func(s *Spec) bool {
			mm := majorMinor(s)
			return mm.Compare(low) >= 0 && mm.Compare(high) <= 0
		},
	}
}

// Below matches versions strictly lower than v at major.minor granularity.
func Below(v string) Range {
	bound := MustParse("range", v)
	return Range{
		name: fmt.Sprintf("<%s", v),
		matches: func(s *Spec) bool {
			return majorMinor(s).Compare(bound) < 0
		},
	}
}

// OneOf matches versions whose major.minor equals any of the listed
// values, e.g. OneOf("2.0", "2.1", "2.4").
func OneOf(versions ...string) Range {
	bounds := make([]*Spec, len(versions))
	for i, v := range versions {
		bounds[i] = MustParse("range", v)
	}
	return Range{
		name: strings.Join(versions, "|"),
		matches: func(s *Spec) bool {
			mm := majorMinor(s)
			for _, b := range bounds {
				if mm.Compare(b) == 0 {
					return true
				}
			}
			return false
		},
	}
}

// Union matches if any of the member ranges matches.
func Union(ranges ...Range) Range {
	names := make([]string, len(ranges))
	for i, r := range ranges {
		names[i] = r.name
	}
	return Range{
		name: strings.Join(names, " or "),
		matches: func(s *Spec) bool {
			for _, r := range ranges {
				if r.matches(s) {
					return true
				}
			}
			return false
		},
	}
}

// majorMinor truncates a spec to its first two release segments so that
// patch-level versions compare inside the range they belong to.
func majorMinor(s *Spec) *Spec {
	segs := s.Segments()
	if len(segs) < 2 {
		return MustParse(s.Name, fmt.Sprintf("%d", segs[0]))
	}
	return MustParse(s.Name, fmt.Sprintf("%d.%d", segs[0], segs[1]))
}
