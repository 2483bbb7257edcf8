package version

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"v1.2.3", "1.2.3"},
		{"v1.2.3-rc1+abc123", "1.2.3"},
		{"(devel)", Fallback},
		{"", Fallback},
		{"2.10.100", "2.10.100"},
		{"go1.23.0", "1.23.0"},
	}
	for _, c := range cases {
		if got := Normalize(c.raw); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestBuildInfoVersionNeverPanics(t *testing.T) {
	_ = BuildInfoVersion()
}
