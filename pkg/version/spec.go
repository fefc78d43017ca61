// Package version parses framework version strings and evaluates them
// against named compatibility ranges. Version strings coming from build
// arguments are frequently decorated with build metadata ("+cu101"),
// preview markers ("-preview1") or distribution suffixes (".post1");
// parsing tolerates those for comparison purposes while preserving the
// original string for downstream install commands.
package version

import (
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// corePattern extracts the leading numeric release segments of a version
// string. Everything after the core (pre-release tags, post-release tags,
// local identifiers) is ignored for comparison.
var corePattern = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)`)

// Spec is a parsed version for a named package. Raw holds the string
// exactly as configured; comparisons use only the parsed release core.
type Spec struct {
	// Name is the package the version belongs to (e.g. "tensorflow").
	Name string `json:"name"`

	// Raw is the version string verbatim, including any suffixes.
	Raw string `json:"raw"`

	core *goversion.Version
}

// ParseError reports a version string whose release core could not be
// extracted. It is fatal wherever the version is needed for a comparison.
type ParseError struct {
	Name string
	Raw  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable version %q for %s", e.Raw, e.Name)
}

// Parse parses a version string for the named package.
// Suffixes that are not part of the release core are dropped for
// comparison but kept verbatim in Raw.
func Parse(name, raw string) (*Spec, error) {
	trimmed := strings.TrimSpace(raw)

	// Local build metadata ("2.5.0+cu101") never participates in ordering.
	base, _, _ := strings.Cut(trimmed, "+")

	m := corePattern.FindStringSubmatch(base)
	if m == nil {
		return nil, &ParseError{Name: name, Raw: raw}
	}

	core, err := goversion.NewVersion(m[1])
	if err != nil {
		return nil, &ParseError{Name: name, Raw: raw}
	}

	return &Spec{Name: name, Raw: trimmed, core: core}, nil
}

// MustParse parses a version literal and panics on failure.
// Intended for compile-time constants such as rule boundaries.
func MustParse(name, raw string) *Spec {
	s, err := Parse(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the raw version string.
func (s *Spec) String() string {
	return s.Raw
}

// Segments returns the numeric release segments (major, minor, ...).
func (s *Spec) Segments() []int {
	return s.core.Segments()
}

// Major returns the major release segment.
func (s *Spec) Major() int {
	return s.core.Segments()[0]
}

// Compare returns -1, 0 or 1 depending on whether s is ordered before,
// equal to, or after other. Only the release cores are compared.
func (s *Spec) Compare(other *Spec) int {
	return s.core.Compare(other.core)
}
