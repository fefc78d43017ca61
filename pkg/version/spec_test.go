package version

import (
	"errors"
	"testing"
)

func TestParseTolerantSuffixes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantMaj int
		wantRaw string
	}{
		{"plain", "1.15.0", 1, "1.15.0"},
		{"build metadata", "1.8.1+cu101", 1, "1.8.1+cu101"},
		{"preview tag", "3.0.0-preview1", 3, "3.0.0-preview1"},
		{"post release", "2.4.0.post2", 2, "2.4.0.post2"},
		{"short", "2.4", 2, "2.4"},
		{"surrounding space", " 0.4.1 ", 0, "0.4.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse("pkg", tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.raw, err)
			}
			if s.Major() != tt.wantMaj {
				t.Errorf("Major() = %d, want %d", s.Major(), tt.wantMaj)
			}
			if s.Raw != tt.wantRaw {
				t.Errorf("Raw = %q, want %q", s.Raw, tt.wantRaw)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "nightly", "latest", "abc.def"} {
		_, err := Parse("pkg", raw)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", raw)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) error is %T, want *ParseError", raw, err)
		}
	}
}

func TestRangeMatching(t *testing.T) {
	legacyTF := Union(MajorIs(1), Between("2.0", "2.4"))

	tests := []struct {
		raw  string
		want bool
	}{
		{"1.15.0", true},
		{"1.1.0", true},
		{"2.0.0", true},
		{"2.4.1", true}, // boundary version is inclusive
		{"2.4", true},
		{"2.5.0", false},
		{"2.11.0", false},
		{"3.0.0", false},
	}

	for _, tt := range tests {
		s := MustParse("tensorflow", tt.raw)
		if got := legacyTF.Matches(s); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v (range %s)", tt.raw, got, tt.want, legacyTF.Name())
		}
	}
}

func TestRangeBelow(t *testing.T) {
	r := Below("0.5")
	if !r.Matches(MustParse("torchvision", "0.4.1")) {
		t.Error("0.4.1 should be below 0.5")
	}
	if r.Matches(MustParse("torchvision", "0.5.0")) {
		t.Error("0.5.0 should not be below 0.5")
	}
}

func TestRangeOneOf(t *testing.T) {
	r := OneOf("2.0", "2.1", "2.4")
	if !r.Matches(MustParse("tensorflow", "2.4.1")) {
		t.Error("2.4.1 should match its major.minor member")
	}
	if r.Matches(MustParse("tensorflow", "2.3.0")) {
		t.Error("2.3.0 is not a member")
	}
}

func TestNilSpecMatchesNothing(t *testing.T) {
	ranges := []Range{MajorIs(1), Between("2.0", "2.4"), Below("99.0"), OneOf("1.0"), Union(MajorIs(1))}
	for _, r := range ranges {
		if r.Matches(nil) {
			t.Errorf("nil spec matched range %s", r.Name())
		}
	}
}

func TestCompareIgnoresMetadata(t *testing.T) {
	a := MustParse("torch", "1.8.1+cu101")
	b := MustParse("torch", "1.8.1")
	if a.Compare(b) != 0 {
		t.Errorf("Compare = %d, want 0", a.Compare(b))
	}
}
