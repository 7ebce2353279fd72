package workspace

import "testing"

func TestMatches(t *testing.T) {
	cases := []struct {
		name      string
		recorded  string
		candidate string
		want      bool
	}{
		{"exact match", "/a/b", "/a/b", true},
		{"candidate is descendant", "/a/b", "/a/b/c", true},
		{"candidate is ancestor", "/a/b/c", "/a/b", true},
		{"unrelated", "/a/b", "/x/y", false},
		{"sibling prefix is not ancestry", "/a/bc", "/a/b", false},
		{"trailing slash normalized", "/a/b/", "/a/b", true},
		{"dot segments normalized", "/a/b/../b", "/a/b", true},
		{"empty recorded excluded", "", "/a/b", false},
		{"empty candidate excluded", "/a/b", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.recorded, tc.candidate); got != tc.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tc.recorded, tc.candidate, got, tc.want)
			}
		})
	}
}

func TestRelated(t *testing.T) {
	if !Related("/a/b", "/a/b") {
		t.Error("a path should be related to itself")
	}
	if Related("/a/b", "/a/bcd") {
		t.Error("shared string prefix without a separator must not count")
	}
}

func TestCanonical(t *testing.T) {
	got, err := Canonical("/a/b/./c/..")
	if err != nil {
		t.Fatalf("Canonical returned error: %v", err)
	}
	if got != "/a/b" {
		t.Errorf("Canonical(/a/b/./c/..) = %q, want /a/b", got)
	}
}
