package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		pattern string
		want    bool
	}{
		{
			name:    "star crosses path separators",
			value:   "/CodeCoverage/by_file/pkg/metric#percent",
			pattern: "/CodeCoverage/*#percent",
			want:    true,
		},
		{
			name:    "star matches empty run",
			value:   "/CodeCoverage#overall",
			pattern: "/CodeCoverage*#overall",
			want:    true,
		},
		{
			name:    "literal mismatch",
			value:   "/Performance#overall_cpu",
			pattern: "/CodeCoverage*",
			want:    false,
		},
		{
			name:    "question mark matches one rune",
			value:   "/run_1#time",
			pattern: "/run_?#time",
			want:    true,
		},
		{
			name:    "question mark does not match two runes",
			value:   "/run_12#time",
			pattern: "/run_?#time",
			want:    false,
		},
		{
			name:    "character class",
			value:   "/run_3#time",
			pattern: "/run_[0-9]#time",
			want:    true,
		},
		{
			name:    "negated character class",
			value:   "/run_a#time",
			pattern: "/run_[!0-9]#time",
			want:    true,
		},
		{
			name:    "negated class excludes member",
			value:   "/run_3#time",
			pattern: "/run_[!0-9]#time",
			want:    false,
		},
		{
			name:    "case sensitive",
			value:   "/codecoverage#overall",
			pattern: "/CodeCoverage#overall",
			want:    false,
		},
		{
			name:    "whole string match required",
			value:   "/CodeCoverage#overall_extra",
			pattern: "/CodeCoverage#overall",
			want:    false,
		},
		{
			name:    "regex metacharacters are literal",
			value:   "/a.b#c",
			pattern: "/a.b#c",
			want:    true,
		},
		{
			name:    "dot does not act as wildcard",
			value:   "/aXb#c",
			pattern: "/a.b#c",
			want:    false,
		},
		{
			name:    "unclosed class is literal",
			value:   "/a[b#c",
			pattern: "/a[b#c",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchGlob(tt.value, tt.pattern),
				"matchGlob(%q, %q)", tt.value, tt.pattern)
		})
	}
}

func TestTranslateGlob(t *testing.T) {
	assert.Equal(t, `\A/a#b\z`, translateGlob("/a#b"))
	assert.Equal(t, `\A.*\z`, translateGlob("*"))
	assert.Equal(t, `\A/run_[^0-9]\z`, translateGlob("/run_[!0-9]"))
}
